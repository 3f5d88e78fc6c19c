// Package backend はホスト型データサービスへのクライアントを提供する。
// 認証（GoTrue互換）とコレクション操作（PostgREST互換）のみを消費する
// 薄いHTTP層で、永続化・認証の実体はすべて外部サービス側にある。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrNoRows は「行が見つからない」を表すセンチネルエラー。
// PostgRESTのエラーコードPGRST116に対応する。他のすべてのクエリ失敗とは
// 区別され、呼び出し側で非致命的な分岐として扱われる。
var ErrNoRows = errors.New("backend: no rows found")

// pgrstNoRowsCode は単一行取得で行が0件の場合にPostgRESTが返すエラーコード。
const pgrstNoRowsCode = "PGRST116"

// restPathPrefix はコレクション操作のパスプレフィックス。
const restPathPrefix = "/rest/v1/"

// Client はホスト型データサービスへの接続を表す。
// 1プロセスに1インスタンスで、現在のセッション（アクセストークン）を保持する。
// すべてのメソッドは複数ゴルーチンから安全に呼び出せる。
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client

	mu      sync.RWMutex
	session *Session
	subs    map[int]AuthCallback
	nextSub int
}

// New はClientを生成する。
// httpClientにはsecurity.SSRFGuardServiceが生成した安全なクライアントを渡す。
// nilの場合はタイムアウト付きのデフォルトクライアントを使用する。
func New(baseURL, anonKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		http:    httpClient,
		subs:    make(map[int]AuthCallback),
	}
}

// restError はPostgRESTのエラーレスポンスを表す。
type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// rest はPostgRESTエンドポイントへのリクエストを実行し、レスポンスボディを返す。
// singleがtrueの場合は単一オブジェクト表現を要求し、行が0件のときは
// ErrNoRowsを返す。
func (c *Client) rest(ctx context.Context, method, table string, query url.Values, body any, single bool) ([]byte, error) {
	u := c.baseURL + restPathPrefix + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.bearerToken())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		// 挿入・更新結果の行をレスポンスで受け取る
		req.Header.Set("Prefer", "return=representation")
	}
	if single {
		req.Header.Set("Accept", "application/vnd.pgrst.object+json")
	} else {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", table, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", table, err)
	}

	if resp.StatusCode >= 400 {
		var apiErr restError
		if jsonErr := json.Unmarshal(data, &apiErr); jsonErr == nil {
			if apiErr.Code == pgrstNoRowsCode {
				return nil, ErrNoRows
			}
			if apiErr.Message != "" {
				return nil, fmt.Errorf("%s returned %d: %s", table, resp.StatusCode, apiErr.Message)
			}
		}
		// 単一オブジェクト要求で行が存在しない場合、PostgRESTは406を返すことがある
		if single && resp.StatusCode == http.StatusNotAcceptable {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("%s returned unexpected status %d", table, resp.StatusCode)
	}

	return data, nil
}

// SelectAll はテーブルの全行を取得する。
// 取得結果は常に全体置換用であり、クライアント側でのマージは行わない。
func SelectAll[T any](ctx context.Context, c *Client, table string) ([]T, error) {
	query := url.Values{}
	query.Set("select", "*")

	data, err := c.rest(ctx, http.MethodGet, table, query, nil, false)
	if err != nil {
		return nil, err
	}

	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode rows from %s: %w", table, err)
	}
	return rows, nil
}

// SelectWhere は指定列が値と一致する行を取得する。
func SelectWhere[T any](ctx context.Context, c *Client, table, column, value string) ([]T, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set(column, "eq."+value)

	data, err := c.rest(ctx, http.MethodGet, table, query, nil, false)
	if err != nil {
		return nil, err
	}

	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode rows from %s: %w", table, err)
	}
	return rows, nil
}

// SelectOne は主キーで1行を取得する。行が存在しない場合はErrNoRowsを返す。
func SelectOne[T any](ctx context.Context, c *Client, table, id string) (*T, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("id", "eq."+id)

	data, err := c.rest(ctx, http.MethodGet, table, query, nil, true)
	if err != nil {
		return nil, err
	}

	var row T
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to decode row from %s: %w", table, err)
	}
	return &row, nil
}

// InsertOne は1行を挿入し、バックエンドが確定した行（採番済みIDを含む）を返す。
func InsertOne[T any](ctx context.Context, c *Client, table string, record T) (*T, error) {
	data, err := c.rest(ctx, http.MethodPost, table, nil, record, true)
	if err != nil {
		return nil, err
	}

	var row T
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to decode inserted row from %s: %w", table, err)
	}
	return &row, nil
}

// UpdateOne は主キーで1行を更新し、更新後の行を返す。
// 該当行が存在しない場合はErrNoRowsを返す。
func UpdateOne[T any](ctx context.Context, c *Client, table, id string, record T) (*T, error) {
	query := url.Values{}
	query.Set("id", "eq."+id)

	data, err := c.rest(ctx, http.MethodPatch, table, query, record, true)
	if err != nil {
		return nil, err
	}

	var row T
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to decode updated row from %s: %w", table, err)
	}
	return &row, nil
}
