package translation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultLoadTimeout bounds a single model load.
const DefaultLoadTimeout = 5 * time.Minute

// Cache memoizes loaded models per language pair. Concurrent first requests
// for a pair share one load, and the least recently used model is closed
// once the cache is full.
type Cache struct {
	loader      Loader
	models      *lru.Cache[Pair, Model]
	group       singleflight.Group
	loadTimeout time.Duration
	closing     sync.WaitGroup
	log         logrus.FieldLogger
}

// NewCache creates a cache holding at most size models.
func NewCache(loader Loader, size int, loadTimeout time.Duration, log logrus.FieldLogger) (*Cache, error) {
	if loader == nil {
		return nil, errors.New("translation cache requires a loader")
	}
	if loadTimeout <= 0 {
		loadTimeout = DefaultLoadTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &Cache{
		loader:      loader,
		loadTimeout: loadTimeout,
		log:         log.WithField("component", "translation"),
	}

	models, err := lru.NewWithEvict[Pair, Model](size, c.evicted)
	if err != nil {
		return nil, fmt.Errorf("create translation cache: %w", err)
	}
	c.models = models
	return c, nil
}

// Translate returns text translated from source to target. Surrounding
// whitespace is preserved and blank text is returned without loading a model.
func (c *Cache) Translate(ctx context.Context, text, source, target string) (string, error) {
	prefix, core, suffix := splitWhitespace(text)
	if core == "" {
		return text, nil
	}

	pair := Pair{Source: source, Target: target}
	if err := pair.Validate(); err != nil {
		return "", err
	}

	for attempt := 0; ; attempt++ {
		model, err := c.model(ctx, pair)
		if err != nil {
			return "", err
		}

		translated, err := model.Translate(ctx, core)
		if errors.Is(err, ErrModelClosed) && attempt == 0 {
			// evicted between lookup and use
			c.forget(pair, model)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("translate %s: %w", pair, err)
		}
		return prefix + translated + suffix, nil
	}
}

// Len reports how many models are loaded.
func (c *Cache) Len() int {
	return c.models.Len()
}

// Close closes every cached model and waits for pending evictions.
func (c *Cache) Close() error {
	c.models.Purge()
	c.closing.Wait()
	return nil
}

func (c *Cache) model(ctx context.Context, pair Pair) (Model, error) {
	if m, ok := c.models.Get(pair); ok {
		return m, nil
	}

	ch := c.group.DoChan(pair.String(), func() (any, error) {
		if m, ok := c.models.Get(pair); ok {
			return m, nil
		}

		// the load outlives the request that triggered it
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		start := time.Now()
		m, err := c.loader.Load(loadCtx, pair)
		if err != nil {
			c.log.WithError(err).WithField("pair", pair.String()).Warn("translation model load failed")
			return nil, fmt.Errorf("load translation model %s: %w", pair, err)
		}
		c.models.Add(pair, m)
		c.log.WithFields(logrus.Fields{
			"pair":    pair.String(),
			"elapsed": time.Since(start).Round(time.Millisecond).String(),
			"cached":  c.models.Len(),
		}).Info("translation model loaded")
		return m, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Model), nil
	}
}

// forget drops pair only if it still maps to the stale model.
func (c *Cache) forget(pair Pair, stale Model) {
	if cur, ok := c.models.Peek(pair); ok && cur == stale {
		c.models.Remove(pair)
	}
}

func (c *Cache) evicted(pair Pair, m Model) {
	c.closing.Add(1)
	go func() {
		defer c.closing.Done()
		if err := m.Close(); err != nil {
			c.log.WithError(err).WithField("pair", pair.String()).Warn("failed to close translation model")
			return
		}
		c.log.WithField("pair", pair.String()).Debug("translation model closed")
	}()
}
