package reportsvc

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/NaveenRoman/AI-TUTor/core/analytics"
)

const (
	chartWidth  = 600
	chartHeight = 320
	chartImage  = "buckets.png"

	summarySheet  = "Summary"
	studentsSheet = "Students"
)

var bucketColors = []color.RGBA{
	{R: 0xd9, G: 0x53, B: 0x4f, A: 0xff},
	{R: 0xf0, G: 0xad, B: 0x4e, A: 0xff},
	{R: 0x5c, G: 0xb8, B: 0x5c, A: 0xff},
}

// Renderer renders the placement report as PDF and the student export as XLSX.
type Renderer struct{}

var _ analytics.Renderer = (*Renderer)(nil)

func NewRenderer() *Renderer {
	return &Renderer{}
}

// BucketChart draws the readiness distribution as a PNG bar chart.
func (rd *Renderer) BucketChart(b analytics.Buckets) ([]byte, error) {
	labels, counts := b.Labeled()
	maxCount := 1
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}

	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetColor(color.White)
	dc.Clear()

	const (
		margin   = 40.0
		barWidth = 120.0
	)
	plotHeight := float64(chartHeight) - 2*margin
	gap := (float64(chartWidth) - 2*margin - barWidth*float64(len(counts))) / float64(len(counts)+1)

	dc.SetColor(color.Black)
	dc.DrawStringAnchored("Readiness distribution", chartWidth/2, margin/2, .5, .5)
	dc.DrawLine(margin, chartHeight-margin, chartWidth-margin, chartHeight-margin)
	dc.SetLineWidth(1)
	dc.Stroke()

	for i, c := range counts {
		x := margin + gap + float64(i)*(barWidth+gap)
		h := plotHeight * float64(c) / float64(maxCount)
		y := chartHeight - margin - h

		dc.SetColor(bucketColors[i%len(bucketColors)])
		dc.DrawRectangle(x, y, barWidth, h)
		dc.Fill()

		dc.SetColor(color.Black)
		dc.DrawStringAnchored(fmt.Sprint(c), x+barWidth/2, y-8, .5, .5)
		dc.DrawStringAnchored(labels[i], x+barWidth/2, chartHeight-margin+14, .5, .5)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, errors.Wrap(err, "encoding chart")
	}
	return buf.Bytes(), nil
}

func (rd *Renderer) PlacementPDF(r analytics.PlacementReport) ([]byte, error) {
	chart, err := rd.BucketChart(r.Buckets)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(r.Institution.Name+" Placement Report", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, r.Institution.Name+" - Placement Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Generated on "+r.GeneratedAt.Format("02 Jan 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Average readiness: %.2f", r.AvgReadiness), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, r.Outlook, "", 1, "L", false, 0, "")
	pdf.Ln(3)

	// buckets
	labels, counts := r.Buckets.Labeled()
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(60, 8, "Readiness", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 8, "Students", "1", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for i, l := range labels {
		pdf.CellFormat(60, 8, l, "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 8, fmt.Sprint(counts[i]), "1", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader(chartImage, opts, bytes.NewReader(chart))
	pdf.ImageOptions(chartImage, pdf.GetX(), pdf.GetY(), 150, 0, true, opts, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 9, "Top students", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 10)
	for _, h := range []struct {
		w    float64
		text string
	}{{10, "#"}, {70, "Name"}, {40, "Username"}, {30, "Readiness"}, {30, "Risk"}} {
		pdf.CellFormat(h.w, 7, h.text, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	for i, s := range r.TopStudents {
		pdf.CellFormat(10, 7, fmt.Sprint(i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(70, 7, s.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, s.Username, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", s.Readiness), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, s.RiskLevel, "1", 1, "C", false, 0, "")
	}

	if len(r.Clusters) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 9, "Weak topic clusters", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, c := range r.Clusters {
			pdf.CellFormat(0, 6, fmt.Sprintf("%s: %d students", c.Topic, c.Students), "", 1, "L", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "writing placement report")
	}
	return buf.Bytes(), nil
}

func (rd *Renderer) StudentsXLSX(e analytics.StudentsExport) ([]byte, error) {
	f := excelize.NewFile()
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, errors.Wrap(err, "naming summary sheet")
	}
	if _, err := f.NewSheet(studentsSheet); err != nil {
		return nil, errors.Wrap(err, "creating students sheet")
	}

	summary := [][]interface{}{
		{"Institution", e.Institution.Name},
		{"Code", e.Institution.Code},
		{"Plan", e.Institution.Plan},
		{"Generated", e.GeneratedAt.Format("2006-01-02 15:04")},
		{"Students", len(e.Students)},
		{"Average readiness", e.AvgReadiness},
		{analytics.BucketLow, e.Buckets.Low},
		{analytics.BucketMedium, e.Buckets.Medium},
		{analytics.BucketHigh, e.Buckets.High},
	}
	for i, row := range summary {
		row := row
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return nil, errors.Wrap(err, "writing summary")
		}
	}

	header := []interface{}{
		"Name", "Username", "Email", "Branch", "Batch", "Readiness", "Technical", "Communication",
		"Consistency", "Confidence", "Behavior", "Risk",
	}
	if err := f.SetSheetRow(studentsSheet, "A1", &header); err != nil {
		return nil, errors.Wrap(err, "writing header")
	}
	for i, s := range e.Students {
		p := s.Profile
		row := []interface{}{
			s.Name, s.Username, s.Email, s.Branch, s.Batch, p.ReadinessScore, p.TechnicalScore,
			p.CommunicationScore, p.ConsistencyScore, p.ConfidenceScore, p.BehaviorScore, p.RiskLevel,
		}
		if err := f.SetSheetRow(studentsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, errors.Wrap(err, "writing student")
		}
	}
	if err := f.SetColWidth(studentsSheet, "A", "C", 24); err != nil {
		return nil, errors.Wrap(err, "sizing columns")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing export")
	}
	return buf.Bytes(), nil
}
