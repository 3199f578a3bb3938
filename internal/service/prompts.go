package service

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/smartmeetingai/api/internal/model"
)

const blogSystemPrompt = `You are a senior business analyst and thought leader who creates comprehensive, research-backed business articles.
You have deep expertise in strategic planning, market analysis, and business transformation.
Your articles are detailed, data-driven, and provide actionable insights for business leaders.`

// meetingDetails derives the prompt context of a task
func meetingDetails(t *model.Task) model.MeetingDetails {
	d := model.MeetingDetails{
		Title: t.Filename,
		Date:  "Recent",
	}
	if d.Title == "" {
		d.Title = "Business Meeting"
	}
	if !t.CreatedAt.IsZero() {
		d.Date = t.CreatedAt.Format("January 2, 2006")
	}
	if t.Transcript != nil {
		d.DurationMinutes = int(t.Transcript.AudioDuration / 60)
	}
	return d
}

func blogPrompt(transcript string, d model.MeetingDetails) string {
	return fmt.Sprintf(`Create a comprehensive, professional blog article based on this meeting transcript. This should be a detailed, research-backed article suitable for business professionals and industry leaders.

MEETING CONTEXT:
- Title: %s
- Date: %s
- Duration: %d minutes

TRANSCRIPT CONTENT:
%s

REQUIREMENTS FOR THE BLOG ARTICLE:
1. LENGTH & DEPTH: 1500-2500 words with detailed analysis and insights.
2. STRUCTURE: a compelling headline, an executive summary, an introduction with context, 4-6 main sections with subheadings, actionable takeaways, and a conclusion with strategic implications.
3. CONTENT: relevant industry trends and best practices, actionable recommendations, potential challenges and solutions.
4. TONE: professional and authoritative, suitable for executives and business leaders.
5. SECTIONS: Executive Summary, Introduction and Context, Key Discussion Points, Industry Trends and Market Analysis, Strategic Implications, Implementation Roadmap, Risk Assessment and Mitigation, Success Metrics and KPIs, Conclusion and Next Steps.

Write the article in Markdown.`, d.Title, d.Date, d.DurationMinutes, transcript)
}

func posterPrompt(transcript string, d model.MeetingDetails) string {
	info := extractMeetingInfo(transcript)
	return fmt.Sprintf(`Create a clean, professional meeting poster with ONLY these essential elements:

MEETING INFORMATION:
- MEETING HOLDER: %s
- AGENDA: %s
- DATE: %s
- TIME: %d minutes duration

DESIGN REQUIREMENTS:
- Clean, minimalist business flyer design (flat design, no 3D effects), just one poster on one page
- Professional corporate colors: blues, grays, whites
- Large, clear typography for the meeting holder name
- Simple layout with just the 4 essential elements
- NO extra text, NO icons, NO complex layouts
- NO room background, NO wall placement, just a flat flyer`, info.Holder, info.Agenda, d.Date, d.DurationMinutes)
}

type meetingInfo struct {
	Holder string
	Agenda string
}

var holderPatterns = []string{
	"i am", "my name is", "this is", "hello everyone, i'm",
	"good morning, i'm", "good afternoon, i'm", "hi, i'm",
	"welcome everyone, i'm", "thank you for joining, i'm",
}

var agendaTopics = []struct {
	keyword string
	agenda  string
}{
	{"quarterly", "Quarterly review and planning"},
	{"strategy", "Strategic planning session"},
	{"performance", "Performance review and discussion"},
	{"project", "Project planning and updates"},
	{"budget", "Budget review and planning"},
	{"team", "Team meeting and updates"},
}

var agendaVerbs = []string{"discuss", "review", "plan", "update", "present"}

// extractMeetingInfo guesses who led the meeting and what it was about.
func extractMeetingInfo(transcript string) meetingInfo {
	info := meetingInfo{
		Holder: "Business Team",
		Agenda: "Business discussion and planning",
	}
	if transcript == "" {
		return info
	}
	lower := strings.ToLower(transcript)

	for _, pattern := range holderPatterns {
		idx := strings.Index(lower, pattern)
		if idx < 0 {
			continue
		}
		fields := strings.Fields(transcript[idx+len(pattern):])
		if len(fields) == 0 {
			continue
		}
		name := strings.TrimFunc(fields[0], func(r rune) bool { return !unicode.IsLetter(r) })
		if len(name) > 2 {
			info.Holder = capitalize(strings.ToLower(name))
			break
		}
	}

	for _, topic := range agendaTopics {
		if strings.Contains(lower, topic.keyword) {
			info.Agenda = topic.agenda
			break
		}
	}

	var items []string
	for _, sentence := range strings.Split(lower, ".") {
		sentence = strings.TrimSpace(sentence)
		for _, verb := range agendaVerbs {
			if strings.Contains(sentence, verb) {
				items = append(items, capitalize(sentence))
				break
			}
		}
		if len(items) == 2 {
			break
		}
	}
	if len(items) > 0 {
		info.Agenda = strings.Join(items, "; ")
	}
	return info
}

func capitalize(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}
