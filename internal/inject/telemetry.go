// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package inject

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("github.com/cardinalhq/tagrunner")

	responsesEvaluated metric.Int64Counter
	snippetsInjected   metric.Int64Counter
	responsesSkipped   metric.Int64Counter
)

func init() {
	var err error

	responsesEvaluated, err = meter.Int64Counter(
		"tagrunner.responses.evaluated",
		metric.WithDescription("HTML responses that went through gate evaluation"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create responses.evaluated counter: %w", err))
	}

	snippetsInjected, err = meter.Int64Counter(
		"tagrunner.snippets.injected",
		metric.WithDescription("Responses that had the container snippet inserted"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create snippets.injected counter: %w", err))
	}

	responsesSkipped, err = meter.Int64Counter(
		"tagrunner.responses.skipped",
		metric.WithDescription("Responses passed through without evaluation (non-HTML or empty)"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create responses.skipped counter: %w", err))
	}
}
