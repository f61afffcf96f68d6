package translation

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	translate "google.golang.org/api/translate/v2"
)

// GoogleOptions selects how the Cloud Translation client authenticates.
// With neither field set, application default credentials are used.
type GoogleOptions struct {
	APIKey          string
	CredentialsFile string
}

// GoogleLoader binds Cloud Translation v2 to individual language pairs.
type GoogleLoader struct {
	service *translate.Service

	mu        sync.Mutex
	supported map[string]bool
}

// NewGoogleLoader creates the Cloud Translation client. extra options are
// appended after the authentication options.
func NewGoogleLoader(ctx context.Context, opts GoogleOptions, extra ...option.ClientOption) (*GoogleLoader, error) {
	var clientOpts []option.ClientOption
	switch {
	case opts.CredentialsFile != "":
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("unable to read credentials file: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, translate.CloudTranslationScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse credentials: %w", err)
		}
		clientOpts = append(clientOpts, option.WithCredentials(creds))
	case opts.APIKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	clientOpts = append(clientOpts, extra...)

	srv, err := translate.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Translate service: %w", err)
	}
	return &GoogleLoader{service: srv}, nil
}

// Load checks that both languages are supported and returns a model bound to
// the pair.
func (l *GoogleLoader) Load(ctx context.Context, pair Pair) (Model, error) {
	supported, err := l.languages(ctx)
	if err != nil {
		return nil, err
	}
	for _, code := range []string{pair.Source, pair.Target} {
		if !supported[strings.ToLower(code)] {
			return nil, fmt.Errorf("no translation model for %s: language %q is not supported", pair, code)
		}
	}
	return &googleModel{service: l.service, pair: pair}, nil
}

// languages fetches the supported language list once; failures are retried
// on the next load.
func (l *GoogleLoader) languages(ctx context.Context) (map[string]bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.supported != nil {
		return l.supported, nil
	}

	resp, err := l.service.Languages.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list supported languages: %w", err)
	}
	supported := make(map[string]bool, len(resp.Languages))
	for _, lang := range resp.Languages {
		supported[strings.ToLower(lang.Language)] = true
	}
	l.supported = supported
	return supported, nil
}

type googleModel struct {
	service *translate.Service
	pair    Pair
}

func (m *googleModel) Translate(ctx context.Context, text string) (string, error) {
	resp, err := m.service.Translations.List([]string{text}, m.pair.Target).
		Source(m.pair.Source).
		Format("text").
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if len(resp.Translations) == 0 {
		return "", errors.New("empty translation response")
	}
	return html.UnescapeString(resp.Translations[0].TranslatedText), nil
}

func (m *googleModel) Close() error { return nil }
