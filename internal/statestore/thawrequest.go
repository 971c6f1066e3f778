package statestore

import (
	"context"
	"time"

	"github.com/curatorhq/curator/internal/model"
)

type wireThawRequest struct {
	Doctype       string   `json:"doctype"`
	RequestID     string   `json:"request_id"`
	Repos         []string `json:"repos"`
	Status        string   `json:"status"`
	CreatedAt     int64    `json:"created_at"`
	StartDate     *int64   `json:"start_date,omitempty"`
	EndDate       *int64   `json:"end_date,omitempty"`
	DurationDays  int      `json:"duration_days"`
	RetrievalTier string   `json:"retrieval_tier"`
}

func toWireThaw(r model.ThawRequest) wireThawRequest {
	w := wireThawRequest{
		Doctype: "thaw_request", RequestID: r.RequestID, Repos: r.Repos, Status: string(r.Status),
		CreatedAt: r.CreatedAt.UnixMilli(), DurationDays: r.DurationDays, RetrievalTier: string(r.RetrievalTier),
	}
	if r.StartDate != nil {
		ms := r.StartDate.UnixMilli()
		w.StartDate = &ms
	}
	if r.EndDate != nil {
		ms := r.EndDate.UnixMilli()
		w.EndDate = &ms
	}
	return w
}

func fromWireThaw(w wireThawRequest, seqNo, primaryTerm int64) model.ThawRequest {
	r := model.ThawRequest{
		RequestID: w.RequestID, Repos: w.Repos, Status: model.ThawRequestStatus(w.Status),
		CreatedAt: time.UnixMilli(w.CreatedAt).UTC(), DurationDays: w.DurationDays,
		RetrievalTier: model.RetrievalTier(w.RetrievalTier), SeqNo: seqNo, PrimaryTerm: primaryTerm,
	}
	if w.StartDate != nil {
		t := time.UnixMilli(*w.StartDate).UTC()
		r.StartDate = &t
	}
	if w.EndDate != nil {
		t := time.UnixMilli(*w.EndDate).UTC()
		r.EndDate = &t
	}
	return r
}

func (s *Store) GetThawRequest(ctx context.Context, requestID string) (model.ThawRequest, bool, error) {
	doc, err := getDocument[wireThawRequest](ctx, s.es, StatusIndex, requestID)
	if err != nil {
		return model.ThawRequest{}, false, err
	}
	if !doc.Found {
		return model.ThawRequest{}, false, nil
	}
	return fromWireThaw(doc.Source, doc.SeqNo, doc.PrimaryTerm), true, nil
}

func (s *Store) SaveThawRequest(ctx context.Context, r model.ThawRequest, expectExisting bool) error {
	return saveDocument(ctx, s.es, StatusIndex, r.RequestID, toWireThaw(r), r.SeqNo, r.PrimaryTerm, expectExisting)
}

func (s *Store) DeleteThawRequest(ctx context.Context, requestID string) error {
	return deleteDocument(ctx, s.es, StatusIndex, requestID)
}

// ListThawRequests returns every thaw_request document; includeTerminal
// controls whether completed/refrozen/failed requests are included, per
// spec §4.3.3's list-mode flag.
func (s *Store) ListThawRequests(ctx context.Context, includeTerminal bool) ([]model.ThawRequest, error) {
	terms := map[string]interface{}{"doctype": "thaw_request"}
	if !includeTerminal {
		terms["status"] = string(model.ThawRequestInProgress)
	}
	docs, err := queryDocuments[wireThawRequest](ctx, s.es, StatusIndex, termQuery(terms))
	if err != nil {
		return nil, err
	}
	out := make([]model.ThawRequest, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromWireThaw(d.Source, d.SeqNo, d.PrimaryTerm))
	}
	return out, nil
}
