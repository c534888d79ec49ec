package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/segyhp/jaryq-library/internal/breaker"
	"github.com/segyhp/jaryq-library/internal/domain"
	customError "github.com/segyhp/jaryq-library/pkg/errors"
)

const subjectMember = "Member"

// MembersClient talks to the members service
type MembersClient struct {
	rest *restClient
}

func NewMembersClient(baseURL string, httpClient *http.Client, b *breaker.Breaker) *MembersClient {
	return &MembersClient{rest: newRestClient(baseURL, httpClient, b)}
}

func (c *MembersClient) FetchByCardNumber(ctx context.Context, cardNumber string) (*domain.Member, error) {
	return c.fetch(ctx, "/members/fetch-by-card", url.Values{"cardNumber": {cardNumber}})
}

// FetchByIIN returns nil with no error when the member does not exist.
func (c *MembersClient) FetchByIIN(ctx context.Context, iin string) (*domain.Member, error) {
	return c.fetch(ctx, "/members/fetch-by-iin", url.Values{"iin": {iin}})
}

func (c *MembersClient) fetch(ctx context.Context, path string, query url.Values) (*domain.Member, error) {
	res, err := c.rest.do(ctx, http.MethodGet, path, query)
	if err != nil {
		return nil, customError.WrapDependencyUnavailable(subjectMember, err)
	}
	if !res.hasData() {
		return nil, nil
	}

	var member domain.Member
	if err := json.Unmarshal(res.data, &member); err != nil {
		return nil, customError.WrapDependencyUnavailable(subjectMember, err)
	}

	return &member, nil
}
