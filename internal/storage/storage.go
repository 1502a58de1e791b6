// Package storage defines the interface of the relational store and the
// error taxonomy its operations surface.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parlatrack/parlatrack/internal/auth"
	"github.com/parlatrack/parlatrack/internal/types"
)

// ErrNotFound is returned when the target api_id does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotModified is returned when an operation would not change stored
// state; callers map it to 204/304 as appropriate.
var ErrNotModified = errors.New("not modified")

// ErrStillReferenced is returned when a vocabulary value cannot be deleted
// because rows still refer to it.
var ErrStillReferenced = errors.New("value still referenced")

// AmbiguousError reports that candidate resolution matched two or more
// stored entities. The enclosing transaction has been rolled back.
type AmbiguousError struct {
	Kind   string // "vorgang", "station", "dokument"
	APIIDs []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous %s match: %s", e.Kind, strings.Join(e.APIIDs, ", "))
}

// IncompleteError reports a dangling api_id reference in a mixed
// embed/reference list.
type IncompleteError struct {
	Ref string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("incomplete data: dokument reference %s does not resolve", e.Ref)
}

// ValidationError wraps a payload validation failure; callers map it to 400.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// Collector identifies the pushing collector for provenance bookkeeping.
type Collector struct {
	KeyID   int64
	Scraper string
}

// Replacing is one enum-replacement directive: rewrite every reference to
// each of Values to refer to objects[ReplacedBy] instead, then delete the
// old rows.
type Replacing[T any] struct {
	ReplacedBy int `json:"replaced_by"`
	Values     []T `json:"values"`
}

// Storage is the store-facing contract of the core. All multi-statement
// operations run in a single transaction; any error means the transaction
// was rolled back.
type Storage interface {
	// Vorgang
	// ApplyVorgang is the collector push path: resolve candidates, then
	// insert or merge. Returns the api_id of the resulting stored row.
	ApplyVorgang(ctx context.Context, v *types.Vorgang, by Collector) (string, error)
	// PutVorgang is PUT-by-id: insert when absent, replace when canonically
	// different, ErrNotModified when equal.
	PutVorgang(ctx context.Context, v *types.Vorgang, by Collector) (created bool, err error)
	GetVorgang(ctx context.Context, apiID string) (*types.Vorgang, error)
	DeleteVorgang(ctx context.Context, apiID string) error
	ListVorgaenge(ctx context.Context, f types.VorgangFilter) ([]*types.Vorgang, int, error)

	// Sitzung
	PutSitzung(ctx context.Context, s *types.Sitzung, by Collector) (created bool, err error)
	GetSitzung(ctx context.Context, apiID string) (*types.Sitzung, error)
	DeleteSitzung(ctx context.Context, apiID string) error
	ListSitzungen(ctx context.Context, f types.SitzungFilter) ([]*types.Sitzung, int, error)
	// ReplaceKalender atomically replaces every session of (parlament, day).
	ReplaceKalender(ctx context.Context, p types.Parlament, day time.Time, sessions []types.Sitzung, by Collector) error
	GetKalender(ctx context.Context, p types.Parlament, day time.Time) ([]*types.Sitzung, error)

	// Enumerations
	EnumPut(ctx context.Context, name types.EnumName, objects []string, replacing []Replacing[string]) error
	EnumList(ctx context.Context, name types.EnumName) ([]string, error)
	EnumDelete(ctx context.Context, name types.EnumName, value string) error
	AutorenPut(ctx context.Context, objects []types.Autor, replacing []Replacing[types.Autor]) error
	AutorenList(ctx context.Context) ([]types.Autor, error)
	AutorenDelete(ctx context.Context, a types.Autor) error
	GremienPut(ctx context.Context, objects []types.Gremium, replacing []Replacing[types.Gremium]) error
	GremienList(ctx context.Context) ([]types.Gremium, error)
	GremienDelete(ctx context.Context, g types.Gremium) error

	// API keys
	CreateKey(ctx context.Context, scope auth.Scope, createdBy int64, expiresAt *time.Time) (string, error)
	RevokeKey(ctx context.Context, keytag string) error
	ValidateKey(ctx context.Context, rawKey string) (auth.Claims, error)
	// EnsureKey upserts a known key value (the configured keyadder key).
	EnsureKey(ctx context.Context, rawKey string, scope auth.Scope) error

	Close() error
}
