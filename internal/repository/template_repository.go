package repository

import (
	"context"
	"database/sql"

	"github.com/unclebandit/anniversary-reminder/internal/model"
)

// TemplateRepository reads the newest active template. Fallback is returned
// when none is stored.
type TemplateRepository struct {
	DB       *sql.DB
	Fallback model.Template
}

func (r *TemplateRepository) LoadActive(ctx context.Context) (model.Template, error) {
	var t model.Template
	err := r.DB.QueryRowContext(ctx, `
        SELECT subject, body FROM templates
        WHERE active
        ORDER BY created_at DESC, id DESC
        LIMIT 1
    `).Scan(&t.Subject, &t.Body)
	if err == sql.ErrNoRows {
		return r.Fallback, nil
	}
	if err != nil {
		return model.Template{}, err
	}
	return t, nil
}
