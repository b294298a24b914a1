package provider

import (
	"regexp"
	"slices"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"postapi/internal/constants"
)

var defaultURLPattern = regexp.MustCompile(constants.DefaultURLPattern)

// neverMatch stands in for a configured pattern that does not compile.
var neverMatch = regexp.MustCompile(`a\A`)

// Provider is an external organization allowed to submit content.
type Provider struct {
	ID             string
	Name           string
	SecretHash     string
	URLPattern     string
	AllowedSources []int
	NotifyEmails   []string
	UserID         int
	// Rules are CEL expressions every submitted payload must satisfy.
	Rules []string

	patternOnce sync.Once
	pattern     *regexp.Regexp
}

// ValidateSecret reports whether candidate matches the stored bcrypt hash.
// A provider without a hash never authenticates.
func (p *Provider) ValidateSecret(candidate string) bool {
	if p.SecretHash == "" || candidate == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(p.SecretHash), []byte(candidate)) == nil
}

func (p *Provider) GetURLPattern() *regexp.Regexp {
	p.patternOnce.Do(func() {
		if p.URLPattern == "" {
			p.pattern = defaultURLPattern
			return
		}
		re, err := regexp.Compile(p.URLPattern)
		if err != nil {
			p.pattern = neverMatch
			return
		}
		p.pattern = re
	})
	return p.pattern
}

func (p *Provider) MatchURL(url string) bool {
	return url != "" && p.GetURLPattern().MatchString(url)
}

// AllowsSource reports whether content may be attributed to source. An empty
// allow list leaves the provider unrestricted.
func (p *Provider) AllowsSource(source int) bool {
	if len(p.AllowedSources) == 0 {
		return true
	}
	return slices.Contains(p.AllowedSources, source)
}

func (p *Provider) GetUserID() int {
	if p.UserID > 0 {
		return p.UserID
	}
	return constants.DefaultProviderUserID
}

func (p *Provider) GetNotifyEmails() []string {
	return slices.Clone(p.NotifyEmails)
}

// HashSecret produces the bcrypt hash stored as a provider's secret_hash.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
