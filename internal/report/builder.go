// Package report renders findings and a summary into the branded assessment
// document and computes its content hash.
package report

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"yfitg/scout/internal/domain"

	gofpdf "github.com/go-pdf/fpdf"
	log "github.com/sirupsen/logrus"
)

// Brand palette.
var (
	colorPrimary   = [3]int{1, 28, 64}
	colorSecondary = [3]int{30, 56, 119}
	colorAccent    = [3]int{38, 117, 166}
	colorText      = [3]int{51, 51, 51}
)

// Builder renders report artifacts. Clock is injectable so identical inputs
// yield byte-identical documents under test.
type Builder struct {
	Log   *log.Entry
	Title string // defaults to "YFITG Network Security Assessment"
	Clock func() time.Time
}

func (b *Builder) now() time.Time {
	if b.Clock != nil {
		return b.Clock().UTC()
	}
	return time.Now().UTC()
}

// Build renders the branded document. A render failure degrades to a
// findings-only document rather than dropping the report; an error is
// returned only when even that fails.
func (b *Builder) Build(findings []domain.Finding, summary domain.Summary, meta domain.ReportMeta) (*domain.ReportArtifact, error) {
	generatedAt := b.now()

	pdfBytes, err := b.renderBranded(findings, summary, meta, generatedAt)
	degraded := false
	if err != nil {
		b.Log.WithError(err).Error("Branded render failed, producing findings-only document")
		pdfBytes, err = b.renderMinimal(findings, meta, generatedAt)
		if err != nil {
			return nil, fmt.Errorf("render minimal report: %w", err)
		}
		degraded = true
	}

	sum := sha256.Sum256(pdfBytes)
	return &domain.ReportArtifact{
		PDF:         pdfBytes,
		SHA256:      hex.EncodeToString(sum[:]),
		ConsentID:   meta.ConsentID,
		DeviceID:    meta.DeviceID,
		GeneratedAt: generatedAt,
		Degraded:    degraded,
	}, nil
}

func (b *Builder) title() string {
	if b.Title != "" {
		return b.Title
	}
	return "YFITG Network Security Assessment"
}

func (b *Builder) renderBranded(findings []domain.Finding, summary domain.Summary, meta domain.ReportMeta, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(generatedAt)
	pdf.SetModificationDate(generatedAt)
	pdf.SetTitle(b.title(), false)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	// Header banner.
	pdf.SetFillColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.Rect(0, 0, 216, 30, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(20, 8)
	pdf.CellFormat(0, 8, b.title(), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetX(20)
	pdf.CellFormat(0, 6, fmt.Sprintf("Device: %s  |  Run: %s  |  Generated: %s",
		meta.DeviceID, meta.RunID, generatedAt.Format("January 2, 2006 at 15:04 UTC")), "", 1, "L", false, 0, "")
	pdf.SetY(38)

	if meta.StatusNote != "" {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(180, 60, 60)
		pdf.MultiCell(0, 5, "Run status: "+meta.StatusNote, "", "L", false)
		pdf.Ln(2)
	}

	b.addSectionHeader(pdf, "Executive Summary")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(colorText[0], colorText[1], colorText[2])
	pdf.MultiCell(0, 5, summary.ExecutiveText, "", "L", false)
	pdf.Ln(4)

	b.addCategoryTable(pdf, summary.Table)
	b.addFindingsByTarget(pdf, findings)
	b.addDisclaimer(pdf, generatedAt)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderMinimal is the unstyled fallback: findings only, no branding assets.
func (b *Builder) renderMinimal(findings []domain.Finding, meta domain.ReportMeta, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(generatedAt)
	pdf.SetModificationDate(generatedAt)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Network Assessment Findings", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Device %s, consent %s, generated %s",
		meta.DeviceID, meta.ConsentID, generatedAt.Format(time.RFC3339)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	for _, f := range findings {
		pdf.MultiCell(0, 5, fmt.Sprintf("[%s] %s %s: %s", f.SeverityHint, f.Target, f.Category, f.Detail), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *Builder) addSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(colorSecondary[0], colorSecondary[1], colorSecondary[2])
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.SetDrawColor(colorAccent[0], colorAccent[1], colorAccent[2])
	pdf.SetLineWidth(0.5)
	x, y := pdf.GetXY()
	pdf.Line(x, y, 196, y)
	pdf.Ln(3)
}

func (b *Builder) addCategoryTable(pdf *gofpdf.Fpdf, table []domain.CategoryCount) {
	b.addSectionHeader(pdf, "Severity Overview")

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(60, 8, "Category", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Total", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 8, "High", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 8, "Medium", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 8, "Low", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for i, cc := range table {
		if i%2 == 0 {
			pdf.SetFillColor(245, 247, 250)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.SetTextColor(colorText[0], colorText[1], colorText[2])
		pdf.CellFormat(60, 7, cc.Category, "1", 0, "L", true, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%d", cc.Count), "1", 0, "C", true, 0, "")
		if cc.High > 0 {
			pdf.SetTextColor(220, 38, 38)
			pdf.SetFont("Helvetica", "B", 10)
		}
		pdf.CellFormat(25, 7, fmt.Sprintf("%d", cc.High), "1", 0, "C", true, 0, "")
		pdf.SetTextColor(colorText[0], colorText[1], colorText[2])
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(25, 7, fmt.Sprintf("%d", cc.Medium), "1", 0, "C", true, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%d", cc.Low), "1", 1, "C", true, 0, "")
	}
	pdf.Ln(4)
}

func (b *Builder) addFindingsByTarget(pdf *gofpdf.Fpdf, findings []domain.Finding) {
	byTarget := make(map[string][]domain.Finding)
	var targets []string
	for _, f := range findings {
		if _, ok := byTarget[f.Target]; !ok {
			targets = append(targets, f.Target)
		}
		byTarget[f.Target] = append(byTarget[f.Target], f)
	}
	sort.Strings(targets)

	if len(targets) == 0 {
		return
	}

	b.addSectionHeader(pdf, "Findings by Host")

	for _, target := range targets {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(colorAccent[0], colorAccent[1], colorAccent[2])
		pdf.CellFormat(0, 7, target, "", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 9)
		for _, f := range byTarget[target] {
			switch f.SeverityHint {
			case domain.SeverityHigh:
				pdf.SetTextColor(220, 38, 38)
			case domain.SeverityMedium:
				pdf.SetTextColor(217, 119, 6)
			default:
				pdf.SetTextColor(colorText[0], colorText[1], colorText[2])
			}
			pdf.MultiCell(0, 5, fmt.Sprintf("  %s  %s", f.Category, f.Detail), "", "L", false)
		}
		pdf.Ln(2)
	}
}

func (b *Builder) addDisclaimer(pdf *gofpdf.Fpdf, generatedAt time.Time) {
	pdf.Ln(6)
	pdf.SetDrawColor(colorAccent[0], colorAccent[1], colorAccent[2])
	x, y := pdf.GetXY()
	pdf.Line(x, y, 196, y)
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(102, 102, 102)
	pdf.MultiCell(0, 4, "Disclaimer: This assessment was performed using non-intrusive scanning techniques. "+
		"No exploitation, password attempts, or network disruption occurred during this scan.", "", "L", false)
	pdf.MultiCell(0, 4, fmt.Sprintf("(c) %d YFITG. All rights reserved. Confidential - for authorized use only.",
		generatedAt.Year()), "", "L", false)
}
