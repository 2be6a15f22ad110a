package emails

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmailLayout_WrapsContent(t *testing.T) {
	html := EmailLayout("<h1>Hello</h1>")
	assert.Contains(t, html, "<h1>Hello</h1>")
	assert.Contains(t, html, "<!DOCTYPE html>")
}

func TestMilestoneValidatedContent_Escapes(t *testing.T) {
	body := MilestoneValidatedContent("<Ana>", "Trees & water", 2, "1000")
	assert.Contains(t, body, "&lt;Ana&gt;")
	assert.Contains(t, body, "Trees &amp; water")
	assert.Contains(t, body, "Milestone 2 validated")
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Title\nBody text", StripTags("<h1>Title</h1>\n  <p>Body <b>text</b></p>\n"))
}

func TestSendGridClient_NoKeyIsNoop(t *testing.T) {
	c := &SendGridClient{}
	assert.NoError(t, c.Send(context.Background(), "a@example.com", "Ana", "s", "<p>x</p>"))
}
