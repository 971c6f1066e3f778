package statestore

import (
	"context"

	"github.com/curatorhq/curator/internal/model"
)

type wireSettings struct {
	Doctype          string `json:"doctype"`
	RepoNamePrefix   string `json:"repo_name_prefix"`
	BucketNamePrefix string `json:"bucket_name_prefix"`
	BasePathPrefix   string `json:"base_path_prefix"`
	StorageClass     string `json:"storage_class"`
	RotateBy         string `json:"rotate_by"`
	LastSuffix       string `json:"last_suffix"`
	Provider         string `json:"provider"`
	Style            string `json:"style"`
	Keep             int    `json:"keep"`
}

// GetSettings returns the single settings document, or ok=false if setup
// has not run yet.
func (s *Store) GetSettings(ctx context.Context) (model.Settings, bool, error) {
	doc, err := getDocument[wireSettings](ctx, s.es, StatusIndex, SettingsDocID)
	if err != nil {
		return model.Settings{}, false, err
	}
	if !doc.Found {
		return model.Settings{}, false, nil
	}
	return model.Settings{
		RepoNamePrefix:   doc.Source.RepoNamePrefix,
		BucketNamePrefix: doc.Source.BucketNamePrefix,
		BasePathPrefix:   doc.Source.BasePathPrefix,
		StorageClass:     doc.Source.StorageClass,
		RotateBy:         model.RotateBy(doc.Source.RotateBy),
		LastSuffix:       doc.Source.LastSuffix,
		Provider:         doc.Source.Provider,
		Style:            model.RotateStyle(doc.Source.Style),
		Keep:             doc.Source.Keep,
		SeqNo:            doc.SeqNo,
		PrimaryTerm:      doc.PrimaryTerm,
	}, true, nil
}

// SaveSettings creates the settings document on first setup (seqNo==0 &&
// primaryTerm==0 with no prior document) or CAS-updates it thereafter.
func (s *Store) SaveSettings(ctx context.Context, settings model.Settings, expectExisting bool) error {
	wire := wireSettings{
		Doctype:          "settings",
		RepoNamePrefix:   settings.RepoNamePrefix,
		BucketNamePrefix: settings.BucketNamePrefix,
		BasePathPrefix:   settings.BasePathPrefix,
		StorageClass:     settings.StorageClass,
		RotateBy:         string(settings.RotateBy),
		LastSuffix:       settings.LastSuffix,
		Provider:         settings.Provider,
		Style:            string(settings.Style),
		Keep:             settings.Keep,
	}
	return saveDocument(ctx, s.es, StatusIndex, SettingsDocID, wire, settings.SeqNo, settings.PrimaryTerm, expectExisting)
}
