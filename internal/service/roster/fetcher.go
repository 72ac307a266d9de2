package roster

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kapu/fclog-bot-go/internal/domain"
	"github.com/kapu/fclog-bot-go/pkg/errors"
)

// Fetcher retrieves the current member list of an organization.
// Implementations return either the complete roster or a FetchError, never a
// partial list.
type Fetcher interface {
	Fetch(ctx context.Context, organizationID string) ([]*domain.Member, error)
	Source() string
}

// newSessionClient returns a client scoped to one fetch. Callers close its
// idle connections when the fetch returns.
func newSessionClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
	}
}

// validateRoster rejects empty rosters and members without an id. An empty
// member list is treated as a failed fetch so a transient upstream glitch
// cannot be reported as everyone leaving.
func validateRoster(members []*domain.Member, organizationID, source string) error {
	if len(members) == 0 {
		return errors.NewFetchError("roster is empty", organizationID, source, nil)
	}
	for i, m := range members {
		if m == nil || strings.TrimSpace(m.ID.String()) == "" {
			return errors.NewFetchError(fmt.Sprintf("member %d has no character id", i), organizationID, source, nil)
		}
	}
	return nil
}
