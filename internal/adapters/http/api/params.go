package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/gitlytix/internal/adapters/provider"
	"github.com/okian/gitlytix/internal/domain/model"
)

const dateLayout = time.DateOnly

// repoParam returns the validated repo_name query parameter.
func repoParam(r *http.Request) (string, error) {
	repo := strings.TrimSpace(r.URL.Query().Get("repo_name"))
	if repo == "" {
		return "", fmt.Errorf("%w: missing repo_name", ErrBadRequest)
	}
	if err := model.ValidateRepo(repo); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return repo, nil
}

// dateParam parses a YYYY-MM-DD parameter as UTC midnight, or returns def
// when the parameter is absent.
func dateParam(r *http.Request, name string, def time.Time) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	t, err := time.ParseInLocation(dateLayout, v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid %s; must be YYYY-MM-DD", ErrBadRequest, name)
	}
	return t, nil
}

// sinceParam is the start_date parameter, defaulting to provider.DefaultSince.
func sinceParam(r *http.Request) (time.Time, error) {
	return dateParam(r, "start_date", provider.DefaultSince)
}

func boolParam(r *http.Request, name string, def bool) (bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: invalid %s", ErrBadRequest, name)
	}
	return b, nil
}
