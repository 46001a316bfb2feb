// Package cmsstorage stores security requests as documents in the headless
// CMS, uploading attachments as file assets first.
package cmsstorage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ironwatch/site/internal/cms"
	"github.com/ironwatch/site/internal/storage"
	"github.com/ironwatch/site/pkg/core"
)

const documentType = "securityRequest"

// Client is the part of the CMS client the backend needs.
type Client interface {
	Query(ctx context.Context, query string, params map[string]any, out any) error
	Mutate(ctx context.Context, mutations []cms.Mutation) (*cms.MutationResult, error)
	UploadAsset(ctx context.Context, name, contentType string, data []byte) (*cms.Asset, error)
}

// Backend writes requests through the CMS mutation API.
type Backend struct {
	client Client
	newID  func() string
}

// New creates a CMS-backed store.
func New(client Client) *Backend {
	return &Backend{
		client: client,
		newID:  func() string { return uuid.NewString() },
	}
}

func (b *Backend) Init() error  { return nil }
func (b *Backend) Close() error { return nil }

type fileRef struct {
	Type  string `json:"_type"`
	Asset struct {
		Type string `json:"_type"`
		Ref  string `json:"_ref"`
	} `json:"asset"`
}

type attachmentDoc struct {
	Key         string   `json:"_key"`
	FileName    string   `json:"fileName"`
	ContentType string   `json:"contentType"`
	Size        int64    `json:"size"`
	File        *fileRef `json:"file,omitempty"`
	AssetRef    string   `json:"assetRef,omitempty"`
}

type requestDoc struct {
	ID   string `json:"_id,omitempty"`
	Type string `json:"_type"`
	core.SecurityRequest
	AttachmentDocs []attachmentDoc `json:"attachmentFiles,omitempty"`
}

// SaveRequest uploads attachments and creates the request document. The
// attachment asset IDs are written back into r.
func (b *Backend) SaveRequest(ctx context.Context, r *core.SecurityRequest) error {
	existing, err := b.GetRequest(ctx, r.RequestID)
	if err == nil && existing != nil {
		return fmt.Errorf("%w: %s", storage.ErrDuplicate, r.RequestID)
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	doc := requestDoc{
		ID:              documentType + "." + b.newID(),
		Type:            documentType,
		SecurityRequest: *r,
	}
	doc.Attachments = nil
	for i := range r.Attachments {
		a := &r.Attachments[i]
		asset, err := b.client.UploadAsset(ctx, a.FileName, a.ContentType, a.Data)
		if err != nil {
			return fmt.Errorf("uploading %s: %w", a.FileName, err)
		}
		a.AssetRef = asset.ID

		ref := &fileRef{Type: "file"}
		ref.Asset.Type = "reference"
		ref.Asset.Ref = asset.ID
		doc.AttachmentDocs = append(doc.AttachmentDocs, attachmentDoc{
			Key:         b.newID(),
			FileName:    a.FileName,
			ContentType: a.ContentType,
			Size:        a.Size,
			File:        ref,
		})
	}

	if _, err := b.client.Mutate(ctx, []cms.Mutation{cms.Create(doc)}); err != nil {
		return fmt.Errorf("creating request document %s: %w", r.RequestID, err)
	}
	return nil
}

const requestFields = `{
  ...,
  "attachmentFiles": attachmentFiles[]{fileName, contentType, size, "assetRef": file.asset._ref}
}`

// GetRequest fetches a request document by request ID.
func (b *Backend) GetRequest(ctx context.Context, requestID string) (*core.SecurityRequest, error) {
	var doc requestDoc
	err := b.client.Query(ctx,
		`*[_type == "securityRequest" && requestId == $id][0]`+requestFields,
		map[string]any{"id": requestID}, &doc)
	if errors.Is(err, cms.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, requestID)
	}
	if err != nil {
		return nil, err
	}
	r := fromDoc(doc)
	return &r, nil
}

// ListRequests fetches matching request documents, oldest first.
func (b *Backend) ListRequests(ctx context.Context, opts storage.ListOptions) ([]core.SecurityRequest, error) {
	filter := `_type == "securityRequest"`
	params := map[string]any{}
	if !opts.Since.IsZero() {
		filter += ` && submittedAt >= $since`
		params["since"] = opts.Since.UTC().Format(time.RFC3339Nano)
	}
	if opts.Status != "" {
		filter += ` && status == $status`
		params["status"] = string(opts.Status)
	}
	query := `*[` + filter + `] | order(submittedAt asc)`
	if opts.Limit > 0 {
		query += fmt.Sprintf("[0...%d]", opts.Limit)
	}

	var docs []requestDoc
	err := b.client.Query(ctx, query+requestFields, params, &docs)
	if errors.Is(err, cms.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]core.SecurityRequest, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out, nil
}

func fromDoc(doc requestDoc) core.SecurityRequest {
	r := doc.SecurityRequest
	r.Attachments = nil
	for _, a := range doc.AttachmentDocs {
		r.Attachments = append(r.Attachments, core.Attachment{
			FileName:    a.FileName,
			ContentType: a.ContentType,
			Size:        a.Size,
			AssetRef:    a.AssetRef,
		})
	}
	return r
}
