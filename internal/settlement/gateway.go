package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rl-arena/stake-pong-backend/pkg/logger"
	"github.com/rl-arena/stake-pong-backend/pkg/metrics"
)

const (
	operationProvision = "provision"
	operationReport    = "report"
)

// ProvisionRequest 양측 스테이크 확인 후 세션 준비를 알리는 요청
type ProvisionRequest struct {
	MatchID string `json:"matchId"`
	PlayerA string `json:"playerA"`
	PlayerB string `json:"playerB"`
	Stake   string `json:"stake"`
}

// ReportRequest 매치 결과 보고
type ReportRequest struct {
	MatchID string `json:"matchId"`
	Winner  string `json:"winner"`
}

// Gateway 외부 정산 서비스로 나가는 HTTP 어댑터.
// baseURL이 비어 있으면 호출 대신 로그만 남긴다.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewGateway Gateway 생성
func NewGateway(baseURL string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// Enabled 정산 서비스 주소가 설정되어 있는지
func (g *Gateway) Enabled() bool {
	return g.baseURL != ""
}

// Provision POST {base}/provision
func (g *Gateway) Provision(ctx context.Context, req ProvisionRequest) error {
	return g.post(ctx, operationProvision, "/provision", req)
}

// Report POST {base}/report
func (g *Gateway) Report(ctx context.Context, req ReportRequest) error {
	return g.post(ctx, operationReport, "/report", req)
}

// ProvisionAsync 재시도 없이 한 번 호출하고 실패는 로그만 남김
func (g *Gateway) ProvisionAsync(matchID, playerA, playerB, stake string) {
	req := ProvisionRequest{MatchID: matchID, PlayerA: playerA, PlayerB: playerB, Stake: stake}
	g.async(operationProvision, matchID, func(ctx context.Context) error {
		return g.Provision(ctx, req)
	})
}

// ReportAsync 재시도 없이 한 번 호출하고 실패는 로그만 남김
func (g *Gateway) ReportAsync(matchID, winner string) {
	req := ReportRequest{MatchID: matchID, Winner: winner}
	g.async(operationReport, matchID, func(ctx context.Context) error {
		return g.Report(ctx, req)
	})
}

func (g *Gateway) async(operation, matchID string, call func(ctx context.Context) error) {
	if !g.Enabled() {
		logger.Info("Settlement disabled, skipping call", "operation", operation, "matchId", matchID)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()

		if err := call(ctx); err != nil {
			metrics.SettlementFailures.WithLabelValues(operation).Inc()
			logger.Warn("Settlement call failed", "operation", operation, "matchId", matchID, "error", err)
		}
	}()
}

func (g *Gateway) post(ctx context.Context, operation, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", operation, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d: %s", operation, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	logger.Info("Settlement call succeeded",
		"operation", operation,
		"status", resp.StatusCode,
		"response", strings.TrimSpace(string(respBody)))

	return nil
}
