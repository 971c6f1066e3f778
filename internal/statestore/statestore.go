// Package statestore is Deepfreeze's persisted operational state: the
// settings document, one document per repository record, one per thaw
// request, and a separate lock index — all backed by a hidden
// Elasticsearch index, per spec §4.3.6/§6.
//
// The generic save/query helpers are adapted from a teacher CouchDB
// document-store idiom (SaveDocument[T any], a small query builder,
// FindTyped[T]), re-targeted from CouchDB's `_rev` compare-and-swap field
// to Elasticsearch's native `_seq_no`/`_primary_term` optimistic
// concurrency headers.
package statestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	elasticsearch "github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"

	"github.com/curatorhq/curator/internal/curatorerr"
)

const (
	// StatusIndex is the hidden, single-shard index holding settings,
	// repository, and thaw_request documents (spec §6).
	StatusIndex = ".deepfreeze-status"
	// LockIndex is the separate CAS-backed distributed lock index (spec
	// §4.3.6).
	LockIndex = ".deepfreeze-locks"

	SettingsDocID = "deepfreeze-settings"
)

// Store wraps the status/lock indices.
type Store struct {
	es *elasticsearch.Client
}

func New(es *elasticsearch.Client) *Store {
	return &Store{es: es}
}

// EnsureIndices creates the status and lock indices if absent, each
// hidden and single-shard per spec §6. Idempotent.
func (s *Store) EnsureIndices(ctx context.Context) error {
	for _, name := range []string{StatusIndex, LockIndex} {
		exists, err := s.indexExists(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		body, _ := json.Marshal(map[string]interface{}{
			"settings": map[string]interface{}{
				"index.hidden":            true,
				"index.number_of_shards":  1,
				"index.number_of_replicas": 0,
			},
		})
		res, err := s.es.Indices.Create(name, s.es.Indices.Create.WithContext(ctx), s.es.Indices.Create.WithBody(bytes.NewReader(body)))
		if err != nil {
			return curatorerr.Wrap(curatorerr.Cluster, "creating status index", err)
		}
		if err := decode(res, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) indexExists(ctx context.Context, name string) (bool, error) {
	res, err := s.es.Indices.Exists([]string{name}, s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	return res.StatusCode == 200, nil
}

func decode(res *esapi.Response, out interface{}) error {
	defer res.Body.Close()
	if res.IsError() {
		return curatorerr.New(curatorerr.Cluster, fmt.Sprintf("status store: %s", res.String()))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// casDocument is the envelope every stored document round-trips through:
// the caller's typed source plus the ES concurrency-control headers.
type casDocument[T any] struct {
	Source      T
	SeqNo       int64
	PrimaryTerm int64
	Found       bool
}

// getDocument fetches id from index and unmarshals _source into T,
// carrying _seq_no/_primary_term for a subsequent CAS save.
func getDocument[T any](ctx context.Context, es *elasticsearch.Client, index, id string) (casDocument[T], error) {
	res, err := es.Get(index, id, es.Get.WithContext(ctx))
	if err != nil {
		return casDocument[T]{}, curatorerr.Wrap(curatorerr.Cluster, "fetching document", err)
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return casDocument[T]{}, nil
	}
	if res.IsError() {
		return casDocument[T]{}, curatorerr.New(curatorerr.Cluster, fmt.Sprintf("fetching %s/%s: %s", index, id, res.String()))
	}
	var body struct {
		Found       bool            `json:"found"`
		SeqNo       int64           `json:"_seq_no"`
		PrimaryTerm int64           `json:"_primary_term"`
		Source      json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return casDocument[T]{}, err
	}
	var doc T
	if body.Found {
		if err := json.Unmarshal(body.Source, &doc); err != nil {
			return casDocument[T]{}, err
		}
	}
	return casDocument[T]{Source: doc, SeqNo: body.SeqNo, PrimaryTerm: body.PrimaryTerm, Found: body.Found}, nil
}

// saveDocument creates or updates id in index, optimistically guarded by
// seqNo/primaryTerm when expectExisting is true (update semantics); when
// false it uses create semantics (fails if the document already exists),
// matching the lock index's create-if-absent contract (spec §9).
func saveDocument[T any](ctx context.Context, es *elasticsearch.Client, index, id string, doc T, seqNo, primaryTerm int64, expectExisting bool) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	opts := []func(*esapi.IndexRequest){es.Index.WithContext(ctx), es.Index.WithDocumentID(id)}
	if expectExisting {
		opts = append(opts, es.Index.WithIfSeqNo(int(seqNo)), es.Index.WithIfPrimaryTerm(int(primaryTerm)))
	} else {
		opts = append(opts, es.Index.WithOpType("create"))
	}
	res, err := es.Index(index, bytes.NewReader(payload), opts...)
	if err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "saving document", err)
	}
	defer res.Body.Close()
	if res.StatusCode == 409 {
		return curatorerr.New(curatorerr.LockTimeout, fmt.Sprintf("concurrent modification of %s/%s", index, id))
	}
	if res.IsError() {
		return curatorerr.New(curatorerr.Cluster, fmt.Sprintf("saving %s/%s: %s", index, id, res.String()))
	}
	return nil
}

func deleteDocument(ctx context.Context, es *elasticsearch.Client, index, id string) error {
	res, err := es.Delete(index, id, es.Delete.WithContext(ctx))
	if err != nil {
		return curatorerr.Wrap(curatorerr.Cluster, "deleting document", err)
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return nil
	}
	if res.IsError() {
		return curatorerr.New(curatorerr.Cluster, fmt.Sprintf("deleting %s/%s: %s", index, id, res.String()))
	}
	return nil
}

// queryDocuments runs a term/match query against index and unmarshals
// every hit's _source into T, narrowed from the teacher's fuller Mango
// query builder since the status store needs only equality and range
// matches over a handful of fields (doctype, thaw_state, expires_at).
func queryDocuments[T any](ctx context.Context, es *elasticsearch.Client, index string, queryJSON []byte) ([]casDocument[T], error) {
	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(bytes.NewReader(queryJSON)),
		es.Search.WithSize(10000),
	)
	if err != nil {
		return nil, curatorerr.Wrap(curatorerr.Cluster, "querying status store", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, curatorerr.New(curatorerr.Cluster, fmt.Sprintf("querying status store: %s", res.String()))
	}
	var body struct {
		Hits struct {
			Hits []struct {
				SeqNo       int64           `json:"_seq_no"`
				PrimaryTerm int64           `json:"_primary_term"`
				Source      json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, err
	}
	out := make([]casDocument[T], 0, len(body.Hits.Hits))
	for _, hit := range body.Hits.Hits {
		var doc T
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return nil, err
		}
		out = append(out, casDocument[T]{Source: doc, SeqNo: hit.SeqNo, PrimaryTerm: hit.PrimaryTerm, Found: true})
	}
	return out, nil
}

// termQuery builds {"query":{"bool":{"filter":[{"term":{k:v}}, ...]}}}.
func termQuery(terms map[string]interface{}) []byte {
	filters := make([]map[string]interface{}, 0, len(terms))
	for k, v := range terms {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{k: v}})
	}
	body, _ := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		},
	})
	return body
}
