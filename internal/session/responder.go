// 本文件用于生成助手回复 匹配与视图转换都在这里串联

package session

import (
	"fmt"
	"strings"

	"carlos-assist/internal/match"
	"carlos-assist/internal/resolution"
)

const maxSuggestionsInReply = 3

// Reply 是一次回复的完整结果 Resolution 仅在命中时非空
type Reply struct {
	Text       string
	Resolution *resolution.View
	Match      match.Result
}

type Responder struct {
	matcher     *match.Matcher
	opts        resolution.Options
	suggestions []string
}

func NewResponder(matcher *match.Matcher, opts resolution.Options, suggestions []string) *Responder {
	return &Responder{
		matcher:     matcher,
		opts:        opts,
		suggestions: append([]string(nil), suggestions...),
	}
}

// Respond 是纯函数 相同输入得到相同回复
func (r *Responder) Respond(text string) Reply {
	result := r.matcher.Match(text)
	if !result.Matched() {
		return Reply{Text: r.clarifyingText(), Match: result}
	}
	view := resolution.Adapt(*result.Article, r.opts)
	return Reply{
		Text:       matchedText(view),
		Resolution: &view,
		Match:      result,
	}
}

func matchedText(view resolution.View) string {
	var b strings.Builder
	if view.Intent != "" {
		fmt.Fprintf(&b, "It looks like you want to %s. ", view.Intent)
	}
	fmt.Fprintf(&b, "I found a guided fix for \"%s\" with %d step", view.Title, len(view.Steps))
	if len(view.Steps) != 1 {
		b.WriteString("s")
	}
	b.WriteString(".")
	if len(view.Causes) > 0 {
		fmt.Fprintf(&b, " The most likely cause is: %s.", strings.TrimSuffix(view.Causes[0], "."))
	}
	return b.String()
}

func (r *Responder) clarifyingText() string {
	text := "I couldn't find a guide for that yet. Which page are you on, and what did you expect to happen?"
	if len(r.suggestions) == 0 {
		return text
	}
	limit := len(r.suggestions)
	if limit > maxSuggestionsInReply {
		limit = maxSuggestionsInReply
	}
	quoted := make([]string, 0, limit)
	for _, s := range r.suggestions[:limit] {
		quoted = append(quoted, "\""+s+"\"")
	}
	return text + " You can also try: " + strings.Join(quoted, ", ") + "."
}
