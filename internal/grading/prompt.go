package grading

import (
	"encoding/json"
	"strings"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/domain/report"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/gemini"
)

const (
	worksheetHeading  = "\n\n**Student Worksheet:**"
	markschemeHeading = "\n\n**Markscheme / Answer Key:**"

	methodMarkscheme = "**Grading Method:** Use the provided markscheme to evaluate the student's work accurately."
	methodGeneral    = "**Grading Method:** Grade based on general academic knowledge and best practices for this subject area. There is no specific markscheme provided."
)

const requirements = `Please analyze the student's work and provide:
1. An overall grade (A* to D and then U scale)
2. A percentage score
3. Total marks available and marks obtained
4. Comprehensive feedback on their performance
5. For EACH question: the question identifier, marks available, marks awarded, and an explanation of the answer/mistakes
6. Practical tips for improvement

Be fair, constructive, and educational in your assessment. If you cannot identify specific questions, use descriptive labels like "Section 1" or "Problem area 1". Estimate marks based on standard academic marking if not explicitly shown.`

// Attachment is a fetched file inlined into the request.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// Instruction renders the natural-language block that opens every request.
func Instruction(r *report.Report) string {
	docType := strings.TrimSpace(string(r.WorksheetType))
	if docType == "" {
		docType = "General"
	}
	opts, err := json.Marshal(r.Options())
	if err != nil {
		opts = []byte("{}")
	}
	method := methodMarkscheme
	if r.MarkschemeType == report.MarkschemeSkip {
		method = methodGeneral
	}

	var b strings.Builder
	b.WriteString("You are an experienced academic examiner. Your task is to grade the following student worksheet and provide detailed feedback.\n\n")
	b.WriteString("**Document Type:** " + docType + "\n")
	b.WriteString("**Report Options:** " + string(opts) + "\n\n")
	b.WriteString(method + "\n\n")
	b.WriteString(requirements)
	return b.String()
}

// BuildRequest assembles the model call. markscheme is ignored when the
// report skips markschemes.
func BuildRequest(profile ModelProfile, r *report.Report, worksheet Attachment, markscheme *Attachment) gemini.Request {
	parts := []gemini.Part{
		gemini.TextPart(Instruction(r)),
		gemini.TextPart(worksheetHeading),
		gemini.BlobPart(worksheet.MIMEType, worksheet.Data),
	}
	if markscheme != nil && r.HasMarkscheme() {
		parts = append(parts,
			gemini.TextPart(markschemeHeading),
			gemini.BlobPart(markscheme.MIMEType, markscheme.Data),
		)
	}
	return gemini.Request{
		Model:  profile.Model,
		Parts:  parts,
		Schema: ResponseSchema(),
	}
}

// ParseReply strips code fences and decodes the reply against the schema.
func ParseReply(raw string) (*report.GradingResult, error) {
	return report.DecodeGradingResult([]byte(gemini.StripCodeFences(raw)))
}
