// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package temporal

import (
	"fmt"
	"time"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
)

var turkishMonths = [...]string{
	"Ocak", "Şubat", "Mart", "Nisan", "Mayıs", "Haziran",
	"Temmuz", "Ağustos", "Eylül", "Ekim", "Kasım", "Aralık",
}

// MonthName returns the Turkish name of m.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return turkishMonths[m-1]
}

// PrimaryDate picks the date an analysis should be anchored to.
//
// Application date wins over certificate date, which wins over investment
// start. The free-form reference date is the last resort. Returns false when
// details carry no date at all.
func PrimaryDate(details *analysis.ExtractedDetails) (time.Time, bool) {
	if details == nil {
		return time.Time{}, false
	}
	for _, d := range []*time.Time{
		details.ApplicationDate,
		details.CertificateDate,
		details.InvestmentStartDate,
		details.ReferenceDate,
	} {
		if d != nil && !d.IsZero() {
			return day(*d), true
		}
	}
	return time.Time{}, false
}

// AcquiredRightsWarning returns the acquired-rights notice when date lies
// strictly before today, nil otherwise.
func AcquiredRightsWarning(date, today time.Time) *string {
	date, today = day(date), day(today)
	if date.IsZero() || !date.Before(today) {
		return nil
	}
	w := fmt.Sprintf("UYARI: Bu rapor, %d yılı %s ayına göre yapılmış bir analize dayanmaktadır. "+
		"Yatırımlarda teşvikler açısından 'kazanılmış haklar' ilkesi geçerli olsa da, bu tarihten sonra "+
		"mevzuatta meydana gelmiş olabilecek değişiklikler nihai durumu etkileyebilir. "+
		"Güncel ve kesin bilgi için mutlaka resmi kurumlara danışınız.",
		date.Year(), MonthName(date.Month()))
	return &w
}

// HistoricalNote is prefixed to the directive text for past-dated analyses.
func HistoricalNote(date, today time.Time) string {
	date, today = day(date), day(today)
	if date.IsZero() || !date.Before(today) {
		return ""
	}
	return fmt.Sprintf("ÖZEL NOT: Bu analiz, %d yılının %s ayındaki duruma göre yapılmalıdır. "+
		"O tarihte geçerli olan mevzuat ve bölgesel şartlar öncelikli olarak dikkate alınmalıdır.",
		date.Year(), MonthName(date.Month()))
}
