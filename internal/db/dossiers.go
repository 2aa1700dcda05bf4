package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// DossierMaxAge is how long a stored dossier counts as fresh.
const DossierMaxAge = 30 * 24 * time.Hour

// GetDossierByName retrieves a stored dossier by normalized company name.
// Returns nil when no record exists.
func (db *DB) GetDossierByName(ctx context.Context, name string) (*DossierRecord, error) {
	normalized := NormalizeName(name)
	if normalized == "" {
		return nil, fmt.Errorf("company name cannot be empty")
	}
	return db.getDossier(ctx,
		`SELECT id, company, name_normalized, COALESCE(domain, ''), dossier, updated_at, created_at
		 FROM company_dossiers WHERE name_normalized = $1`,
		normalized)
}

// GetDossierByDomain retrieves a stored dossier by company domain.
func (db *DB) GetDossierByDomain(ctx context.Context, domain string) (*DossierRecord, error) {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return nil, fmt.Errorf("domain cannot be empty")
	}
	return db.getDossier(ctx,
		`SELECT id, company, name_normalized, COALESCE(domain, ''), dossier, updated_at, created_at
		 FROM company_dossiers WHERE domain = $1`,
		domain)
}

// LookupDossier tries name first, then domain.
func (db *DB) LookupDossier(ctx context.Context, name, domain string) (*DossierRecord, error) {
	if NormalizeName(name) != "" {
		record, err := db.GetDossierByName(ctx, name)
		if err != nil || record != nil {
			return record, err
		}
	}
	if NormalizeDomain(domain) != "" {
		return db.GetDossierByDomain(ctx, domain)
	}
	return nil, nil
}

func (db *DB) getDossier(ctx context.Context, query string, arg any) (*DossierRecord, error) {
	var record DossierRecord
	err := db.pool.QueryRow(ctx, query, arg).Scan(
		&record.ID, &record.Company, &record.NameNormalized, &record.Domain,
		&record.Dossier, &record.UpdatedAt, &record.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get dossier: %w", err)
	}
	return &record, nil
}

// UpsertDossier stores a dossier document keyed by normalized company name.
func (db *DB) UpsertDossier(ctx context.Context, company, domain string, dossier []byte) error {
	normalized := NormalizeName(company)
	if normalized == "" {
		return fmt.Errorf("company name cannot be empty")
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO company_dossiers (company, name_normalized, domain, dossier)
		 VALUES ($1, $2, NULLIF($3, ''), $4)
		 ON CONFLICT (name_normalized)
		 DO UPDATE SET company = $1, domain = COALESCE(NULLIF($3, ''), company_dossiers.domain),
		               dossier = $4, updated_at = NOW()`,
		company, normalized, NormalizeDomain(domain), dossier,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert dossier: %w", err)
	}
	return nil
}

// Fresh reports whether the stored dossier is within the staleness window.
func (r *DossierRecord) Fresh(now time.Time) bool {
	return now.Sub(r.UpdatedAt) < DossierMaxAge
}
