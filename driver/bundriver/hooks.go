/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package bundriver

import (
	"context"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"

	"github.com/last1971/dbkeeper/utils"
)

// SlowQueryHook warns about statements that run longer than a threshold.
// Setting DB_SLOW_QUERY_LOG=false silences it.
type SlowQueryHook struct {
	threshold time.Duration
	logger    Logger
	enabled   bool
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

func NewSlowQueryHook(threshold time.Duration, logger Logger) *SlowQueryHook {
	return &SlowQueryHook{
		threshold: threshold,
		logger:    logger,
		enabled:   utils.EnvDefaultBool("DB_SLOW_QUERY_LOG", true),
	}
}

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if !h.enabled || h.logger == nil || event.Err != nil {
		return
	}
	duration := time.Since(event.StartTime)
	if duration <= h.threshold {
		return
	}
	h.logger.Warn("slow query detected",
		"duration", duration.Round(time.Microsecond),
		"threshold", h.threshold,
		"query", operationColor(event.Operation()).Sprint(event.Query),
	)
}

func operationColor(op string) *color.Color {
	switch op {
	case "SELECT":
		return color.New(color.FgGreen)
	case "INSERT":
		return color.New(color.FgBlue)
	case "UPDATE":
		return color.New(color.FgYellow)
	case "DELETE":
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgRed)
	}
}
