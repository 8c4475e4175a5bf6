package relink

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

type (
	// OpenConnectionParams is what a connection attempt dials with.
	OpenConnectionParams struct {
		URL    url.URL
		Header http.Header
	}

	// OpenConnectionParamsGetter resolves the dial parameters for rawURL. It runs before every
	// attempt, so it can hand out fresh credentials on each reconnect.
	OpenConnectionParamsGetter func(ctx context.Context, rawURL string) (OpenConnectionParams, error)

	OpenConnectionParamsRepo struct {
		logger Logger
		getter OpenConnectionParamsGetter
	}
)

// Get returns the parameters for rawURL. The zero repo dials rawURL with no extra headers.
func (r OpenConnectionParamsRepo) Get(
	ctx context.Context,
	rawURL string,
) (params OpenConnectionParams, err error) {
	if r.getter == nil {
		return ParseOpenConnectionParams(rawURL, nil)
	}

	params, err = r.getter(ctx, rawURL)
	if err != nil && r.logger != nil {
		r.logger.Errorf("cannot fetch open connection params: %s", err)
	}
	return
}

func NewOpenConnectionParamsRepo(
	logger Logger,
	getter OpenConnectionParamsGetter,
) OpenConnectionParamsRepo {
	return OpenConnectionParamsRepo{getter: getter, logger: logger}
}

// StaticHeaderGetter dials every attempt with the same header.
func StaticHeaderGetter(header http.Header) OpenConnectionParamsGetter {
	return func(_ context.Context, rawURL string) (OpenConnectionParams, error) {
		return ParseOpenConnectionParams(rawURL, header.Clone())
	}
}

func ParseOpenConnectionParams(rawURL string, header http.Header) (OpenConnectionParams, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return OpenConnectionParams{}, errors.Wrapf(err, "cannot parse url %q", rawURL)
	}
	return OpenConnectionParams{URL: *u, Header: header}, nil
}
