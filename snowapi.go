package main

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
)

const (
	// The server picks the Arrow rowset format for clients identifying as the Go driver.
	apiClientAppID      = "Go"
	apiClientAppVersion = "1.12.0"

	queryInProgressCode      = "333333"
	queryInProgressAsyncCode = "333334"
	resultPollInterval       = 500 * time.Millisecond
)

type APIConfig struct {
	BaseURL    string
	Account    string
	User       string
	Password   string
	PrivateKey *rsa.PrivateKey
	Role       string
	Warehouse  string
	Database   string
	Schema     string
	KeepAlive  *bool
	Timeout    time.Duration
}

// APIClient speaks the Snowflake REST session protocol (login-request, query-request).
type APIClient struct {
	config APIConfig
	http   *http.Client
	mem    memory.Allocator
	now    func() time.Time
}

type APISession struct {
	client *APIClient
	token  string
}

type loginRequest struct {
	Data loginRequestData `json:"data"`
}

type loginRequestData struct {
	ClientAppID       string         `json:"CLIENT_APP_ID"`
	ClientAppVersion  string         `json:"CLIENT_APP_VERSION"`
	AccountName       string         `json:"ACCOUNT_NAME"`
	LoginName         string         `json:"LOGIN_NAME"`
	Password          string         `json:"PASSWORD,omitempty"`
	Authenticator     string         `json:"AUTHENTICATOR,omitempty"`
	Token             string         `json:"TOKEN,omitempty"`
	SessionParameters map[string]any `json:"SESSION_PARAMETERS,omitempty"`
}

type loginResponse struct {
	Data struct {
		Token       string `json:"token"`
		MasterToken string `json:"masterToken"`
	} `json:"data"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Success bool   `json:"success"`
}

type queryRequest struct {
	SQLText    string `json:"sqlText"`
	AsyncExec  bool   `json:"asyncExec"`
	SequenceID int    `json:"sequenceId"`
	IsInternal bool   `json:"isInternal"`
}

type queryResponse struct {
	Data    QueryData `json:"data"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Success bool      `json:"success"`
}

type RowType struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Nullable  bool   `json:"nullable"`
	Precision int64  `json:"precision"`
	Scale     int64  `json:"scale"`
	Length    int64  `json:"length"`
}

type ResultChunk struct {
	URL              string `json:"url"`
	RowCount         int64  `json:"rowCount"`
	UncompressedSize int64  `json:"uncompressedSize"`
	CompressedSize   int64  `json:"compressedSize"`
}

type QueryData struct {
	QueryID           string            `json:"queryId"`
	RowType           []RowType         `json:"rowtype"`
	Rowset            json.RawMessage   `json:"rowset"`
	RowsetBase64      string            `json:"rowsetBase64"`
	QueryResultFormat string            `json:"queryResultFormat"`
	Total             int64             `json:"total"`
	Returned          int64             `json:"returned"`
	Chunks            []ResultChunk     `json:"chunks"`
	ChunkHeaders      map[string]string `json:"chunkHeaders"`
	Qrmk              string            `json:"qrmk"`
	GetResultURL      string            `json:"getResultUrl"`
}

type Shape int

const (
	ShapeEmpty Shape = iota
	ShapeArrow
	ShapeJSON
)

func (s Shape) String() string {
	switch s {
	case ShapeArrow:
		return "Arrow"
	case ShapeJSON:
		return "JSON"
	}
	return "empty"
}

func rowsetEmpty(rowset json.RawMessage) bool {
	trimmed := bytes.TrimSpace(rowset)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("[]"))
}

func (d *QueryData) Shape() Shape {
	switch {
	case d.RowsetBase64 == "" && len(d.Chunks) == 0 && rowsetEmpty(d.Rowset):
		return ShapeEmpty
	case d.RowsetBase64 != "" || strings.EqualFold(d.QueryResultFormat, "arrow"):
		return ShapeArrow
	}
	return ShapeJSON
}

// BaseURL builds protocol://host:port, defaulting to the public account endpoint.
func BaseURL(profile Profile) string {
	protocol, host, port := profile.Protocol, profile.Host, profile.Port
	if protocol == "" {
		protocol = "https"
	}
	if host == "" {
		host = fmt.Sprintf("%v.snowflakecomputing.com", profile.Account)
	}
	if port == 0 {
		port = 443
	}
	return fmt.Sprintf("%v://%v:%v", protocol, host, port)
}

func NewAPIClient(config APIConfig) *APIClient {
	return &APIClient{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		mem:    memory.DefaultAllocator,
		now:    time.Now,
	}
}

func (c *APIClient) do(ctx context.Context, method, path string, query url.Values, body any, headers map[string]string, out any) error {
	target := c.config.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/snowflake")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %v: %v", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *APIClient) Login(ctx context.Context) (*APISession, error) {
	query := url.Values{}
	query.Set("request_id", uuid.NewString())
	for key, value := range map[string]string{
		"databaseName": c.config.Database,
		"schemaName":   c.config.Schema,
		"warehouse":    c.config.Warehouse,
		"roleName":     c.config.Role,
	} {
		if value != "" {
			query.Set(key, value)
		}
	}

	data := loginRequestData{
		ClientAppID:      apiClientAppID,
		ClientAppVersion: apiClientAppVersion,
		AccountName:      accountLocator(c.config.Account),
		LoginName:        c.config.User,
	}
	if c.config.PrivateKey != nil {
		token, err := KeyPairToken(c.config.Account, c.config.User, c.config.PrivateKey, c.now())
		if err != nil {
			return nil, err
		}
		data.Authenticator = "SNOWFLAKE_JWT"
		data.Token = token
	} else {
		data.Password = c.config.Password
	}
	if c.config.KeepAlive != nil {
		data.SessionParameters = map[string]any{"CLIENT_SESSION_KEEP_ALIVE": *c.config.KeepAlive}
	}

	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/session/v1/login-request", query, loginRequest{Data: data}, nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: login request failed: %w", ErrConnection, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: login rejected (code %v): %v", ErrConnection, resp.Code, resp.Message)
	}
	Logger.Debugf("logged in as %v to %v", c.config.User, c.config.BaseURL)
	return &APISession{client: c, token: resp.Data.Token}, nil
}

func (s *APISession) authHeaders() map[string]string {
	return map[string]string{"Authorization": fmt.Sprintf(`Snowflake Token="%v"`, s.token)}
}

// Query runs the statement and waits until its first result page is available.
func (s *APISession) Query(ctx context.Context, sql string) (*QueryData, error) {
	query := url.Values{}
	query.Set("requestId", uuid.NewString())
	body := queryRequest{SQLText: sql, SequenceID: 1}

	var resp queryResponse
	if err := s.client.do(ctx, http.MethodPost, "/queries/v1/query-request", query, body, s.authHeaders(), &resp); err != nil {
		return nil, fmt.Errorf("%w: query request failed: %w", ErrQueryExecution, err)
	}
	for resp.Code == queryInProgressCode || resp.Code == queryInProgressAsyncCode {
		if resp.Data.GetResultURL == "" {
			return nil, fmt.Errorf("%w: query %v in progress without result url", ErrQueryExecution, resp.Data.QueryID)
		}
		select {
		case <-time.After(resultPollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		path := resp.Data.GetResultURL
		resp = queryResponse{}
		if err := s.client.do(ctx, http.MethodGet, path, nil, nil, s.authHeaders(), &resp); err != nil {
			return nil, fmt.Errorf("%w: result request failed: %w", ErrQueryExecution, err)
		}
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %v (code %v)", ErrQueryExecution, resp.Message, resp.Code)
	}
	return &resp.Data, nil
}

// Close deletes the server side session.
func (s *APISession) Close(ctx context.Context) error {
	query := url.Values{}
	query.Set("delete", "true")
	query.Set("request_id", uuid.NewString())
	return s.client.do(ctx, http.MethodPost, "/session", query, nil, s.authHeaders(), nil)
}

func (s *APISession) fetchChunk(ctx context.Context, data *QueryData, chunk ResultChunk) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chunk.URL, nil)
	if err != nil {
		return nil, err
	}
	if len(data.ChunkHeaders) > 0 {
		for key, value := range data.ChunkHeaders {
			req.Header.Set(key, value)
		}
	} else if data.Qrmk != "" {
		req.Header.Set("x-amz-server-side-encryption-customer-algorithm", "AES256")
		req.Header.Set("x-amz-server-side-encryption-customer-key", data.Qrmk)
	}
	resp, err := s.client.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to download chunk: %w", ErrQueryExecution, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read chunk: %w", ErrQueryExecution, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: chunk download returned status %v", ErrQueryExecution, resp.StatusCode)
	}
	return body, nil
}

// CountJSON counts rows of a JSON result: the rowset array length plus rows of every
// chunk; a rowset which is not an array counts as one record.
func (s *APISession) CountJSON(ctx context.Context, data *QueryData) (int64, error) {
	rowset := bytes.TrimSpace(data.Rowset)
	var count int64
	switch {
	case rowsetEmpty(rowset):
	case rowset[0] == '[':
		var rows []json.RawMessage
		if err := json.Unmarshal(rowset, &rows); err != nil {
			return 0, fmt.Errorf("%w: failed to decode rowset: %w", ErrQueryExecution, err)
		}
		count = int64(len(rows))
	default:
		count = 1
	}
	for i, chunk := range data.Chunks {
		body, err := s.fetchChunk(ctx, data, chunk)
		if err != nil {
			return 0, err
		}
		// chunks hold comma separated rows without the enclosing brackets
		var rows []json.RawMessage
		if err := json.Unmarshal(append(append([]byte{'['}, body...), ']'), &rows); err != nil {
			return 0, fmt.Errorf("%w: failed to decode chunk #%v: %w", ErrQueryExecution, i, err)
		}
		count += int64(len(rows))
	}
	return count, nil
}

// chunkedReader streams Arrow records from the inline rowset, then from every
// result chunk in order, downloading a chunk only once the previous one is consumed.
type chunkedReader struct {
	ctx     context.Context
	session *APISession
	data    *QueryData
	mem     memory.Allocator

	schema *arrow.Schema
	cur    *ipc.Reader
	chunk  int
	rec    arrow.Record
	err    error
	closed bool
}

func (s *APISession) ArrowReader(ctx context.Context, data *QueryData) (BatchReader, error) {
	r := &chunkedReader{ctx: ctx, session: s, data: data, mem: s.client.mem}
	if data.RowsetBase64 != "" {
		raw, err := base64.StdEncoding.DecodeString(data.RowsetBase64)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode arrow rowset: %w", ErrQueryExecution, err)
		}
		if err := r.open(raw); err != nil {
			return nil, err
		}
	} else if err := r.openChunk(); err != nil {
		return nil, err
	}
	r.schema = r.cur.Schema()
	return r, nil
}

func (r *chunkedReader) open(raw []byte) error {
	reader, err := ipc.NewReader(bytes.NewReader(raw), ipc.WithAllocator(r.mem))
	if err != nil {
		return fmt.Errorf("%w: failed to open arrow stream: %w", ErrQueryExecution, err)
	}
	r.cur = reader
	return nil
}

func (r *chunkedReader) openChunk() error {
	if r.chunk >= len(r.data.Chunks) {
		return fmt.Errorf("%w: arrow result has neither rowset nor chunks", ErrQueryExecution)
	}
	chunk := r.data.Chunks[r.chunk]
	r.chunk++
	Logger.Debugf("download chunk #%v/%v (%v rows)", r.chunk, len(r.data.Chunks), chunk.RowCount)
	raw, err := r.session.fetchChunk(r.ctx, r.data, chunk)
	if err != nil {
		return err
	}
	return r.open(raw)
}

func (r *chunkedReader) Schema() *arrow.Schema { return r.schema }
func (r *chunkedReader) Record() arrow.Record  { return r.rec }
func (r *chunkedReader) Err() error            { return r.err }

func (r *chunkedReader) Next() bool {
	r.rec = nil
	for r.cur != nil && r.err == nil {
		if r.cur.Next() {
			r.rec = r.cur.Record()
			return true
		}
		if err := r.cur.Err(); err != nil {
			r.err = err
			return false
		}
		r.cur.Release()
		r.cur = nil
		if r.chunk >= len(r.data.Chunks) {
			return false
		}
		if err := r.openChunk(); err != nil {
			r.err = err
			return false
		}
	}
	return false
}

func (r *chunkedReader) Release() {
	if r.closed {
		return
	}
	r.closed = true
	r.rec = nil
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
}
