// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command tesvik analyzes Turkish investment incentive questions.
//
// Usage:
//
//	tesvik analyze "Gaziantep'te 50 milyon TL'lik otel yatırımı"
//	tesvik analyze --offline --topic otel --region Gaziantep --amount 50000000 "..."
//	tesvik audit otel --region Gaziantep --amount 50000000
//	tesvik region Bursa --type "Öncelikli Yatırım" --query "OSB içinde"
//	tesvik rules --date 2015-03-01
//	tesvik directives --date 2015-03-01
//	tesvik list
//	tesvik show <session-id>
//	tesvik index ./corpus
//	tesvik serve
//
// Configuration comes from the YAML or JSON file named by --config or
// $TESVIK_CONFIG, then from TESVIK_* environment variables.
package main

import (
	"os"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
