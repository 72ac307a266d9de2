package roster

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/kapu/fclog-bot-go/internal/constants"
	"github.com/kapu/fclog-bot-go/internal/domain"
	"github.com/kapu/fclog-bot-go/pkg/errors"
	"go.uber.org/zap"
)

const SourceLodestone = "lodestone"

var (
	characterPathPattern = regexp.MustCompile(`/lodestone/character/(\d+)/?`)
	pagerPattern         = regexp.MustCompile(`(\d+)\D+(\d+)`)
)

// LodestoneFetcher scrapes the free company member pages on the Lodestone.
type LodestoneFetcher struct {
	baseURL  string
	timeout  time.Duration
	maxPages int
	logger   *zap.Logger
}

func NewLodestoneFetcher(baseURL string, timeout time.Duration, logger *zap.Logger) *LodestoneFetcher {
	if baseURL == "" {
		baseURL = constants.APIConfig.LodestoneBaseURL
	}
	return &LodestoneFetcher{
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  timeout,
		maxPages: constants.APIConfig.MaxLodestonePage,
		logger:   logger,
	}
}

func (l *LodestoneFetcher) Source() string {
	return SourceLodestone
}

// Fetch walks every member page. Any failing page fails the whole fetch.
func (l *LodestoneFetcher) Fetch(ctx context.Context, organizationID string) ([]*domain.Member, error) {
	client := newSessionClient(l.timeout)
	defer client.CloseIdleConnections()

	members := make([]*domain.Member, 0)
	seen := make(map[domain.CharacterID]struct{})
	parseErrors := 0

	totalPages := 1
	for page := 1; page <= totalPages; page++ {
		doc, err := l.fetchPage(ctx, client, organizationID, page)
		if err != nil {
			return nil, err
		}

		if page == 1 {
			totalPages = parseTotalPages(doc)
			if totalPages > l.maxPages {
				l.logger.Warn("Lodestone pager exceeds page cap",
					zap.Int("pages", totalPages),
					zap.Int("cap", l.maxPages),
				)
				// A truncated walk would report every member on the skipped pages as Left.
				return nil, errors.NewFetchError(
					fmt.Sprintf("pager reports %d pages, cap is %d", totalPages, l.maxPages),
					organizationID, SourceLodestone, nil)
			}
		}

		doc.Find("li.entry").Each(func(_ int, sel *goquery.Selection) {
			member, err := parseMemberEntry(sel)
			if err != nil {
				parseErrors++
				l.logger.Debug("Failed to parse member entry", zap.Int("page", page), zap.Error(err))
				return
			}
			if _, dup := seen[member.ID]; dup {
				return
			}
			seen[member.ID] = struct{}{}
			members = append(members, member)
		})
	}

	if parseErrors > 0 {
		return nil, errors.NewFetchError(
			fmt.Sprintf("%d member entries could not be parsed; page structure may have changed", parseErrors),
			organizationID, SourceLodestone, nil)
	}
	if err := validateRoster(members, organizationID, SourceLodestone); err != nil {
		return nil, err
	}

	l.logger.Debug("Roster scraped from Lodestone",
		zap.String("organization_id", organizationID),
		zap.Int("members", len(members)),
		zap.Int("pages", totalPages),
	)

	return members, nil
}

func (l *LodestoneFetcher) fetchPage(ctx context.Context, client *http.Client, organizationID string, page int) (*goquery.Document, error) {
	reqURL := fmt.Sprintf("%s/lodestone/freecompany/%s/member/?page=%d", l.baseURL, organizationID, page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.NewFetchError("failed to create request", organizationID, SourceLodestone, err)
	}
	req.Header.Set("User-Agent", constants.APIConfig.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.NewFetchError("request failed", organizationID, SourceLodestone, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := errors.NewAPIError(fmt.Sprintf("Lodestone error: %s", resp.Status), resp.StatusCode, map[string]any{
			"page": page,
		})
		return nil, errors.NewFetchError("unexpected status", organizationID, SourceLodestone, apiErr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.NewFetchError("HTML parse failed", organizationID, SourceLodestone, err)
	}
	return doc, nil
}

func parseMemberEntry(sel *goquery.Selection) (*domain.Member, error) {
	href, ok := sel.Find("a.entry__bg").Attr("href")
	if !ok {
		return nil, fmt.Errorf("entry has no character link")
	}
	match := characterPathPattern.FindStringSubmatch(href)
	if match == nil {
		return nil, fmt.Errorf("could not extract character id from %q", href)
	}

	name := strings.TrimSpace(sel.Find(".entry__name").First().Text())
	if name == "" {
		return nil, fmt.Errorf("entry %s has no name", match[1])
	}

	rank := strings.TrimSpace(sel.Find(".entry__freecompany__info span").First().Text())
	avatar, _ := sel.Find(".entry__chara__face img").Attr("src")

	return &domain.Member{
		ID:        domain.CharacterID(match[1]),
		Name:      name,
		Rank:      rank,
		AvatarURL: strings.TrimSpace(avatar),
	}, nil
}

// parseTotalPages reads "Page 1 of 3" from the pager. A missing pager means a
// single page.
func parseTotalPages(doc *goquery.Document) int {
	text := strings.TrimSpace(doc.Find(".btn__pager__current").First().Text())
	match := pagerPattern.FindStringSubmatch(text)
	if match == nil {
		return 1
	}
	total, err := strconv.Atoi(match[2])
	if err != nil || total < 1 {
		return 1
	}
	return total
}
