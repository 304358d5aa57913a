package routes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/formdeck/formdeck/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx so form lookups can run
// inside or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// fetchForm loads a form and its ordered fields. Returns sql.ErrNoRows when
// the form does not exist.
func fetchForm(ctx context.Context, q querier, id int) (model.Form, error) {
	form := model.Form{ID: id}

	var tags string
	var maxSubmissions sql.NullInt64
	err := q.QueryRowContext(ctx, `
		SELECT version, title, description, status, tags, max_submissions, prevent_duplicates, created_at
		FROM form
		WHERE id = ?`,
		id,
	).Scan(
		&form.Version, &form.Title, &form.Description, &form.Status,
		&tags, &maxSubmissions, &form.Settings.PreventDuplicates, &form.CreatedAt,
	)
	if err != nil {
		return form, err
	}

	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &form.Tags); err != nil {
			return form, err
		}
	}
	if maxSubmissions.Valid {
		n := int(maxSubmissions.Int64)
		form.Settings.MaxSubmissions = &n
	}

	form.Fields, err = fetchFields(ctx, q, id)
	return form, err
}

func fetchFields(ctx context.Context, q querier, formID int) ([]model.FormField, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, type, label, placeholder, required, options, position, settings
		FROM form_field
		WHERE form_id = ?
		ORDER BY position`,
		formID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []model.FormField
	for rows.Next() {
		f := model.FormField{FormID: formID}
		var options, settings string
		err = rows.Scan(&f.ID, &f.Type, &f.Label, &f.Placeholder, &f.Required, &options, &f.Order, &settings)
		if err != nil {
			return nil, err
		}
		if options != "" {
			if err := json.Unmarshal([]byte(options), &f.Options); err != nil {
				return nil, err
			}
		}
		if settings != "" && settings != "{}" {
			if err := json.Unmarshal([]byte(settings), &f.Settings); err != nil {
				return nil, err
			}
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

// responseFilter narrows a response listing; zero values mean "no filter".
type responseFilter struct {
	Status model.ResponseStatus
	Since  time.Time
	Until  time.Time
	Search string
}

func fetchResponses(ctx context.Context, q querier, formID int, filter responseFilter) ([]model.FormResponse, error) {
	query := `
		SELECT id, form_id, respondent_email, status, submitted_at, ip, user_agent
		FROM form_response
		WHERE form_id = ?`
	args := []any{formID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if !filter.Since.IsZero() {
		query += ` AND submitted_at >= ?`
		args = append(args, filter.Since)
	}
	if !filter.Until.IsZero() {
		query += ` AND submitted_at < ?`
		args = append(args, filter.Until)
	}
	if filter.Search != "" {
		query += ` AND (respondent_email LIKE ? OR id IN (
			SELECT response_id FROM response_field_value WHERE value LIKE ?))`
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY submitted_at DESC, id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []model.FormResponse
	byID := make(map[int]int)
	for rows.Next() {
		resp := model.FormResponse{}
		err = rows.Scan(&resp.ID, &resp.FormID, &resp.RespondentEmail, &resp.Status, &resp.SubmittedAt, &resp.IP, &resp.UserAgent)
		if err != nil {
			return nil, err
		}
		byID[resp.ID] = len(responses)
		responses = append(responses, resp)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return responses, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(responses)), ",")
	valueArgs := make([]any, len(responses))
	for i, resp := range responses {
		valueArgs[i] = resp.ID
	}
	valueRows, err := q.QueryContext(ctx, `
		SELECT response_id, field_id, value
		FROM response_field_value
		WHERE response_id IN (`+placeholders+`)
		ORDER BY id`,
		valueArgs...,
	)
	if err != nil {
		return nil, err
	}
	defer valueRows.Close()

	for valueRows.Next() {
		var responseID int
		var value model.ResponseFieldValue
		err = valueRows.Scan(&responseID, &value.FieldID, &value.Value)
		if err != nil {
			return nil, err
		}
		i := byID[responseID]
		responses[i].Values = append(responses[i].Values, value)
	}
	return responses, valueRows.Err()
}

// submissionStore adapts the database to what the validator needs.
type submissionStore struct {
	q querier
}

func (s submissionStore) ResponseCount(ctx context.Context, formID int) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM form_response WHERE form_id = ?`, formID,
	).Scan(&n)
	return n, err
}

func (s submissionStore) HasRespondentEmail(ctx context.Context, formID int, email string) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx, `
		SELECT 1 FROM form_response
		WHERE form_id = ?
			AND respondent_email = ?
		LIMIT 1`,
		formID, email,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// marshalStrings encodes a string list for a TEXT column, empty when there
// is nothing to store.
func marshalStrings(v []string) (string, error) {
	if len(v) == 0 {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func marshalSettings(v map[string]string) (string, error) {
	if len(v) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
