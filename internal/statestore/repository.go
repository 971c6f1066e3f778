package statestore

import (
	"context"
	"time"

	"github.com/curatorhq/curator/internal/model"
)

type wireRepository struct {
	Doctype         string   `json:"doctype"`
	Name            string   `json:"name"`
	Bucket          string   `json:"bucket"`
	BasePath        string   `json:"base_path"`
	Suffix          string   `json:"suffix"`
	IsMounted       bool     `json:"is_mounted"`
	ThawState       string   `json:"thaw_state"`
	EarliestEpochMs int64    `json:"earliest_epoch_ms"`
	LatestEpochMs   int64    `json:"latest_epoch_ms"`
	Indices         []string `json:"indices"`
	ExpiresAt       *int64   `json:"expires_at,omitempty"` // epoch ms
}

func toWireRepository(r model.Repository) wireRepository {
	w := wireRepository{
		Doctype: "repository", Name: r.Name, Bucket: r.Bucket, BasePath: r.BasePath,
		Suffix: r.Suffix, IsMounted: r.IsMounted, ThawState: string(r.ThawState),
		EarliestEpochMs: r.EarliestEpochMs, LatestEpochMs: r.LatestEpochMs, Indices: r.Indices,
	}
	if r.ExpiresAt != nil {
		ms := r.ExpiresAt.UnixMilli()
		w.ExpiresAt = &ms
	}
	return w
}

func fromWireRepository(w wireRepository, seqNo, primaryTerm int64) model.Repository {
	r := model.Repository{
		Name: w.Name, Bucket: w.Bucket, BasePath: w.BasePath, Suffix: w.Suffix,
		IsMounted: w.IsMounted, ThawState: model.ThawState(w.ThawState),
		EarliestEpochMs: w.EarliestEpochMs, LatestEpochMs: w.LatestEpochMs, Indices: w.Indices,
		SeqNo: seqNo, PrimaryTerm: primaryTerm,
	}
	if w.ExpiresAt != nil {
		t := time.UnixMilli(*w.ExpiresAt).UTC()
		r.ExpiresAt = &t
	}
	return r
}

func (s *Store) GetRepository(ctx context.Context, name string) (model.Repository, bool, error) {
	doc, err := getDocument[wireRepository](ctx, s.es, StatusIndex, name)
	if err != nil {
		return model.Repository{}, false, err
	}
	if !doc.Found {
		return model.Repository{}, false, nil
	}
	return fromWireRepository(doc.Source, doc.SeqNo, doc.PrimaryTerm), true, nil
}

// SaveRepository creates (expectExisting=false) or CAS-updates the
// document keyed by the repository's own name.
func (s *Store) SaveRepository(ctx context.Context, r model.Repository, expectExisting bool) error {
	return saveDocument(ctx, s.es, StatusIndex, r.Name, toWireRepository(r), r.SeqNo, r.PrimaryTerm, expectExisting)
}

func (s *Store) DeleteRepository(ctx context.Context, name string) error {
	return deleteDocument(ctx, s.es, StatusIndex, name)
}

// ListRepositories returns every repository record in the status index.
func (s *Store) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	docs, err := queryDocuments[wireRepository](ctx, s.es, StatusIndex, termQuery(map[string]interface{}{"doctype": "repository"}))
	if err != nil {
		return nil, err
	}
	out := make([]model.Repository, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromWireRepository(d.Source, d.SeqNo, d.PrimaryTerm))
	}
	return out, nil
}

// ListRepositoriesByThawState narrows ListRepositories to a single
// thaw_state, used by thaw-create's frozen-repository query (spec
// §4.3.3 step 1).
func (s *Store) ListRepositoriesByThawState(ctx context.Context, state model.ThawState) ([]model.Repository, error) {
	docs, err := queryDocuments[wireRepository](ctx, s.es, StatusIndex, termQuery(map[string]interface{}{
		"doctype": "repository", "thaw_state": string(state),
	}))
	if err != nil {
		return nil, err
	}
	out := make([]model.Repository, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromWireRepository(d.Source, d.SeqNo, d.PrimaryTerm))
	}
	return out, nil
}
