package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kapu/fclog-bot-go/internal/constants"
	"github.com/kapu/fclog-bot-go/internal/domain"
	"github.com/kapu/fclog-bot-go/internal/util"
	"github.com/kapu/fclog-bot-go/pkg/errors"
	"go.uber.org/zap"
)

const SourceXIVAPI = "xivapi"

// XIVAPIFetcher reads the roster from the XIVAPI free company endpoint.
type XIVAPIFetcher struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	logger  *zap.Logger
}

func NewXIVAPIFetcher(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *XIVAPIFetcher {
	if baseURL == "" {
		baseURL = constants.APIConfig.XIVAPIBaseURL
	}
	return &XIVAPIFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		logger:  logger,
	}
}

type xivapiFreeCompanyResponse struct {
	FreeCompany        *xivapiFreeCompany `json:"FreeCompany"`
	FreeCompanyMembers []*xivapiMember    `json:"FreeCompanyMembers"`
}

type xivapiFreeCompany struct {
	ID   flexibleID `json:"ID"`
	Name string     `json:"Name"`
	Tag  string     `json:"Tag"`
}

type xivapiMember struct {
	ID     flexibleID `json:"ID"`
	Name   string     `json:"Name"`
	Rank   string     `json:"Rank"`
	Avatar string     `json:"Avatar"`
}

// flexibleID accepts both numeric and string JSON ids.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*f = flexibleID(n.String())
	return nil
}

func (x *XIVAPIFetcher) Source() string {
	return SourceXIVAPI
}

func (x *XIVAPIFetcher) Fetch(ctx context.Context, organizationID string) ([]*domain.Member, error) {
	client := newSessionClient(x.timeout)
	defer client.CloseIdleConnections()

	params := url.Values{}
	params.Set("data", "FCM")
	if x.apiKey != "" {
		params.Set("private_key", x.apiKey)
	}
	endpoint := fmt.Sprintf("%s/freecompany/%s", x.baseURL, url.PathEscape(organizationID))
	reqURL := endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.NewFetchError("failed to create request", organizationID, SourceXIVAPI, util.RedactURLError(err, endpoint))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", constants.APIConfig.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.NewFetchError("request failed", organizationID, SourceXIVAPI, util.RedactURLError(err, endpoint))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewFetchError("failed to read response", organizationID, SourceXIVAPI, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := errors.NewAPIError(fmt.Sprintf("XIVAPI error: %s", resp.Status), resp.StatusCode, map[string]any{
			"body": truncateBody(body),
		})
		return nil, errors.NewFetchError("unexpected status", organizationID, SourceXIVAPI, apiErr)
	}

	var payload xivapiFreeCompanyResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.NewFetchError("malformed response", organizationID, SourceXIVAPI, err)
	}
	if payload.FreeCompanyMembers == nil {
		return nil, errors.NewFetchError("response has no member list", organizationID, SourceXIVAPI, nil)
	}

	members := make([]*domain.Member, 0, len(payload.FreeCompanyMembers))
	for _, m := range payload.FreeCompanyMembers {
		if m == nil {
			members = append(members, nil)
			continue
		}
		members = append(members, &domain.Member{
			ID:        domain.CharacterID(m.ID),
			Name:      strings.TrimSpace(m.Name),
			Rank:      strings.TrimSpace(m.Rank),
			AvatarURL: strings.TrimSpace(m.Avatar),
		})
	}

	if err := validateRoster(members, organizationID, SourceXIVAPI); err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("organization_id", organizationID),
		zap.Int("members", len(members)),
	}
	if payload.FreeCompany != nil {
		fields = append(fields, zap.String("name", payload.FreeCompany.Name))
	}
	x.logger.Debug("Roster fetched from XIVAPI", fields...)

	return members, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
