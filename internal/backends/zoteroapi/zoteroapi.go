// Package zoteroapi implements the record repository on top of the Zotero
// Web API v3, either against api.zotero.org or against the read-only
// local API of a running Zotero desktop client.
package zoteroapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/espace/zotsync/internal/backends/zotero"
	"github.com/espace/zotsync/internal/transport"
	"github.com/espace/zotsync/pkg/constants"
	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/logging"
	"github.com/espace/zotsync/pkg/records"
)

// Backend names used in errors and logs.
const (
	NameAPI   = "api"
	NameLocal = "local"
)

// Config selects the library and tunes the client.
type Config struct {
	BaseURL     string
	LibraryType records.LibraryType
	LibraryID   string
	APIKey      string
	// AuthScheme is one of header (default), bearer, query or none.
	AuthScheme string
	// ReadOnly rejects every mutation with errors.ErrReadOnly.
	ReadOnly   bool
	MaxRetries int
	// RetryInterval is the first backoff interval.
	RetryInterval time.Duration
	HTTPClient    *http.Client
}

// Repository talks to one Zotero library.
type Repository struct {
	name   string
	base   string
	cfg    Config
	client *transport.Client
}

var _ records.Repository = (*Repository)(nil)

// New returns a repository for a library on the Zotero Web API.
func New(cfg Config) (*Repository, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.ZoteroAPIURL
	}
	if strings.TrimSpace(cfg.LibraryID) == "" {
		return nil, errors.NewValidationError("library_id", cfg.LibraryID, "is required")
	}
	return newRepository(NameAPI, cfg)
}

// NewLocal returns a read-only repository for the local API of the
// Zotero desktop client. The library defaults to the user's own library.
func NewLocal(cfg Config) (*Repository, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.ZoteroLocalURL
	}
	if cfg.LibraryID == "" {
		cfg.LibraryID = "0"
	}
	cfg.ReadOnly = true
	cfg.AuthScheme = transport.SchemeNone
	return newRepository(NameLocal, cfg)
}

func newRepository(name string, cfg Config) (*Repository, error) {
	if cfg.LibraryType == "" {
		cfg.LibraryType = records.LibraryUser
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = constants.MaxRetries
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = constants.RetryBackoff
	}
	auth, err := transport.ForScheme(cfg.AuthScheme)
	if err != nil {
		return nil, err
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.NewValidationError("api_url", cfg.BaseURL, err.Error())
	}

	client := transport.New(auth, cfg.APIKey,
		transport.WithHTTPClient(cfg.HTTPClient),
		transport.WithHeader("Zotero-API-Version", constants.ZoteroAPIVersion),
	)
	return &Repository{
		name:   name,
		base:   fmt.Sprintf("%s/%s/%s", strings.TrimRight(cfg.BaseURL, "/"), cfg.LibraryType.Plural(), url.PathEscape(cfg.LibraryID)),
		cfg:    cfg,
		client: client,
	}, nil
}

// Name returns the backend name.
func (r *Repository) Name() string { return r.name }

// ListRecords implements records.Reader. Items are returned oldest first
// so pages are stable while the library is not modified.
func (r *Repository) ListRecords(ctx context.Context, filter records.Filter) (*records.Page, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("start", strconv.Itoa(filter.Start))
	q.Set("limit", strconv.Itoa(min(filter.PageSize(), constants.MaxPageSize)))
	q.Set("sort", "dateAdded")
	q.Set("direction", "asc")
	endpoint := r.base + "/items/top?" + q.Encode()

	resp, err := r.do(ctx, "list", func() (*http.Request, error) {
		return transport.NewRequest(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, err
	}
	total, hasTotal := totalResults(resp)

	var items []item
	if err := transport.DecodeResponse(resp, r.name, &items); err != nil {
		return nil, r.mapError("list", "", "", err)
	}

	page := &records.Page{Next: filter.Start + len(items)}
	for _, it := range items {
		if zotero.Skipped(it.Data.ItemType) {
			continue
		}
		rec := it.toRecord()
		if filter.Match(rec) {
			page.Records = append(page.Records, rec)
		}
	}
	if hasTotal {
		page.More = page.Next < total
	} else {
		page.More = len(items) > 0 && len(items) >= filter.PageSize()
	}

	logging.FromContext(ctx).Debug().
		Str("backend", r.name).
		Int("start", filter.Start).
		Int("received", len(items)).
		Int("kept", len(page.Records)).
		Bool("more", page.More).
		Msg("Listed Zotero items")
	return page, nil
}

func totalResults(resp *http.Response) (int, bool) {
	n, err := strconv.Atoi(resp.Header.Get("Total-Results"))
	return n, err == nil
}

// writeResponse is the body of a multi-object write.
type writeResponse struct {
	Successful map[string]item `json:"successful"`
	Failed     map[string]struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"failed"`
}

// CreateRecord implements records.Writer.
func (r *Repository) CreateRecord(ctx context.Context, draft records.Draft) (records.Record, error) {
	if r.cfg.ReadOnly {
		return records.Record{}, r.readOnly("create", "")
	}
	// one token per logical write so a retried POST is not applied twice
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	payload := []map[string]any{createData(draft.Fields)}

	resp, err := r.do(ctx, "create", func() (*http.Request, error) {
		req, err := transport.NewRequest(ctx, http.MethodPost, r.base+"/items", payload)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Zotero-Write-Token", token)
		return req, nil
	})
	if err != nil {
		return records.Record{}, err
	}

	var out writeResponse
	if err := transport.DecodeResponse(resp, r.name, &out); err != nil {
		return records.Record{}, r.mapError("create", "", "", err)
	}
	if f, ok := out.Failed["0"]; ok {
		return records.Record{}, errors.NewAPIError(r.name, f.Code, f.Message)
	}
	it, ok := out.Successful["0"]
	if !ok {
		return records.Record{}, errors.NewAPIError(r.name, resp.StatusCode, "create returned no item")
	}
	return it.toRecord(), nil
}

// UpdateRecord implements records.Writer. The stored item is re-read
// after the write to return its new version.
func (r *Repository) UpdateRecord(ctx context.Context, id, version string, patch records.Patch) (records.Record, error) {
	if r.cfg.ReadOnly {
		return records.Record{}, r.readOnly("update", id)
	}

	var current itemData
	if needsCurrent(patch) {
		it, err := r.get(ctx, id)
		if err != nil {
			return records.Record{}, err
		}
		if strconv.Itoa(it.Version) != version {
			return records.Record{}, errors.NewConflictError("item", id, version)
		}
		current = it.Data
	}
	payload := patchData(patch, current)

	resp, err := r.do(ctx, "update", func() (*http.Request, error) {
		req, err := transport.NewRequest(ctx, http.MethodPatch, r.itemURL(id), payload)
		if err != nil {
			return nil, err
		}
		req.Header.Set("If-Unmodified-Since-Version", version)
		return req, nil
	})
	if err != nil {
		return records.Record{}, err
	}
	if err := transport.CheckResponse(resp, r.name); err != nil {
		return records.Record{}, r.mapError("update", id, version, err)
	}

	it, err := r.get(ctx, id)
	if err != nil {
		return records.Record{}, err
	}
	return it.toRecord(), nil
}

// DeleteRecord implements records.Writer.
func (r *Repository) DeleteRecord(ctx context.Context, id, version string) error {
	if r.cfg.ReadOnly {
		return r.readOnly("delete", id)
	}
	resp, err := r.do(ctx, "delete", func() (*http.Request, error) {
		req, err := transport.NewRequest(ctx, http.MethodDelete, r.itemURL(id), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("If-Unmodified-Since-Version", version)
		return req, nil
	})
	if err != nil {
		return err
	}
	return r.mapError("delete", id, version, transport.CheckResponse(resp, r.name))
}

func (r *Repository) get(ctx context.Context, id string) (item, error) {
	endpoint := r.itemURL(id) + "?format=json"
	resp, err := r.do(ctx, "get", func() (*http.Request, error) {
		return transport.NewRequest(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return item{}, err
	}
	var it item
	if err := transport.DecodeResponse(resp, r.name, &it); err != nil {
		return item{}, r.mapError("get", id, "", err)
	}
	return it, nil
}

func (r *Repository) itemURL(id string) string {
	return r.base + "/items/" + url.PathEscape(id)
}

func (r *Repository) readOnly(op, id string) error {
	return errors.NewResourceError(op, "item", id, errors.ErrReadOnly)
}

// do sends a request, retrying network failures, 429 and 5xx responses
// with exponential backoff. Any other response is returned to the caller
// unread. Exhausted retries become a BackendUnavailableError.
func (r *Repository) do(ctx context.Context, op string, build func() (*http.Request, error)) (*http.Response, error) {
	logger := logging.FromContext(ctx)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.RetryInterval
	bo.MaxInterval = constants.MaxRetryBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.cfg.MaxRetries)), ctx)

	var resp *http.Response
	var buildErr error
	err := backoff.RetryNotify(func() error {
		req, err := build()
		if err != nil {
			buildErr = err
			return backoff.Permanent(err)
		}
		res, err := r.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
			return transport.CheckResponse(res, r.name)
		}
		resp = res
		return nil
	}, policy, func(err error, wait time.Duration) {
		logger.Warn().Err(err).Str("backend", r.name).Str("operation", op).Dur("wait", wait).Msg("Retrying Zotero request")
	})

	switch {
	case err == nil:
		logger.Debug().Str("backend", r.name).Str("operation", op).Int("status", resp.StatusCode).Msg("Zotero request")
		return resp, nil
	case buildErr != nil:
		return nil, buildErr
	case ctx.Err() != nil:
		return nil, ctx.Err()
	}
	return nil, errors.NewBackendUnavailableError(r.name, op, err)
}

// mapError translates API errors into the repository taxonomy.
func (r *Repository) mapError(op, id, version string, err error) error {
	var apiErr *errors.APIError
	if err == nil || !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.StatusCode {
	case http.StatusPreconditionFailed:
		c := errors.NewConflictError("item", id, version)
		c.Err = err
		return c
	case http.StatusNotFound:
		if id == "" {
			return errors.NewBackendUnavailableError(r.name, op, err)
		}
		return errors.NewNotFoundError("item", id)
	case http.StatusUnauthorized, http.StatusForbidden:
		method := "api_key"
		if !r.client.HasKey() {
			method = "none"
		}
		auth := errors.NewAuthenticationError(r.name, method, apiErr.Message, err)
		return errors.NewBackendUnavailableError(r.name, op, auth)
	}
	return err
}
