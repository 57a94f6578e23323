// Copyright (c) Choko (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"github.com/curioswitch/go-curiostack/config"
)

type Search struct {
	// Engine is the name of the search engine to use, e.g. projects/408496405753/locations/global/collections/default_collection/engines/aichat-context.
	Engine string `koanf:"engine"`
}

type Chat struct {
	// MaxToolSteps bounds sequential tool-invocation rounds per turn.
	MaxToolSteps int `koanf:"maxtoolsteps"`

	// TimeoutSeconds is the maximum end-to-end duration of a chat turn.
	TimeoutSeconds int `koanf:"timeoutseconds"`
}

type Config struct {
	config.Common

	// Search is the configuration for context augmentation search.
	Search Search `koanf:"search"`

	// Chat is the configuration for chat turns.
	Chat Chat `koanf:"chat"`
}
