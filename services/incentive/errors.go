// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package incentive

import "errors"

// Sentinel errors returned by Service.
var (
	// ErrEmptyQuery is returned when an analysis query is blank.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrQueryTooLong is returned when a query exceeds the configured limit.
	ErrQueryTooLong = errors.New("query too long")

	// ErrInvalidDate is returned when a date parameter is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("date must be YYYY-MM-DD")

	// ErrUnknownCity is returned when a city is not in the region table.
	ErrUnknownCity = errors.New("unknown city")

	// ErrRunNotFound is returned when no stored analysis has the session ID.
	ErrRunNotFound = errors.New("analysis not found")

	// ErrIndexingUnavailable is returned by Index when the retrieval
	// backend is not Weaviate.
	ErrIndexingUnavailable = errors.New("indexing requires the weaviate retrieval backend")
)

// ErrMissingTopic is returned by Audit when no topic is given.
var ErrMissingTopic = errors.New("topic must not be empty")

// ErrInvalidType is returned for an unknown investment type.
var ErrInvalidType = errors.New("unknown investment type")

// ErrSensitiveQuery is returned by Analyze in block mode when the query
// contains personal data.
var ErrSensitiveQuery = errors.New("query contains personal data")

// ErrIncompleteReport is returned by Analyze when the pipeline ends
// without a final report.
var ErrIncompleteReport = errors.New("pipeline finished without a report")
