package cmd

import (
	"github.com/kozaktomas/faceauth/internal/fingerprint"
	"github.com/kozaktomas/faceauth/internal/identity"
	"github.com/kozaktomas/faceauth/internal/matcher"
)

func newRepository() *identity.Repository {
	return identity.New(cfg.Store.Dir, identity.Options{
		Dim:       cfg.Store.Dim,
		IOTimeout: cfg.Store.IOTimeout,
		Logger:    logger,
	})
}

func newMatcher(repo *identity.Repository) (*matcher.Matcher, error) {
	pred, err := fingerprint.NewPredicate(cfg.Match.Metric, cfg.Match.Threshold)
	if err != nil {
		return nil, err
	}
	return matcher.New(repo, pred, matcher.WithLogger(logger)), nil
}

func newEmbeddingClient() *fingerprint.EmbeddingClient {
	return fingerprint.NewEmbeddingClient(cfg.Embedding.URL, cfg.Embedding.Timeout)
}
