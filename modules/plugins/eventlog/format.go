package eventlog

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Seklfreak/robyul-automod/helpers"
	"github.com/Seklfreak/robyul-automod/metrics"
	"github.com/bwmarrin/discordgo"
)

const (
	embedMaxMessages      = 10
	embedDescriptionLimit = 4096
	embedTotalLimit       = 6000
	embedFieldValueLimit  = 1024
	fileTimeFormat        = "2006-01-02 15:04:05 MST"
)

func sortMessages(messages []*discordgo.Message) []*discordgo.Message {
	sorted := make([]*discordgo.Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return helpers.CompareSnowflakes(sorted[i].ID, sorted[j].ID) < 0
	})
	return sorted
}

func messageTime(msg *discordgo.Message) time.Time {
	if !msg.Timestamp.IsZero() {
		return msg.Timestamp
	}
	created, err := discordgo.SnowflakeTimestamp(msg.ID)
	if err != nil {
		return time.Time{}
	}
	return created
}

func authorName(user *discordgo.User) string {
	if user == nil {
		return "unknown user"
	}
	if user.Discriminator != "" && user.Discriminator != "0" {
		return user.Username + "#" + user.Discriminator
	}
	return user.Username
}

func attachmentURLs(msg *discordgo.Message) []string {
	urls := make([]string, 0, len(msg.Attachments))
	for _, attachment := range msg.Attachments {
		urls = append(urls, attachment.URL)
	}
	return urls
}

func deletedEmbedLine(msg *discordgo.Message) string {
	if msg.Author == nil {
		return fmt.Sprintf("`#%s` *(not cached)*", msg.ID)
	}
	content := msg.Content
	if urls := attachmentURLs(msg); len(urls) > 0 {
		content = strings.TrimSpace(content + "\n" + strings.Join(urls, "\n"))
	}
	if content == "" {
		content = "*(no content)*"
	}
	return fmt.Sprintf("**%s** (<@%s>) <t:%d:T>\n%s", helpers.EscapeMarkdown(authorName(msg.Author)),
		msg.Author.ID, messageTime(msg).Unix(), content)
}

func deletedFileLine(msg *discordgo.Message) string {
	at := messageTime(msg).UTC().Format(fileTimeFormat)
	if msg.Author == nil {
		return fmt.Sprintf("[%s] message #%s (not cached)", at, msg.ID)
	}
	line := fmt.Sprintf("[%s] %s (#%s): %s", at, authorName(msg.Author), msg.Author.ID, helpers.StripMarkdown(msg.Content))
	for _, url := range attachmentURLs(msg) {
		line += "\n    attachment: " + url
	}
	return line
}

func deletedTitle(count int) string {
	if count == 1 {
		return "Message deleted"
	}
	return fmt.Sprintf("%d messages deleted", count)
}

func deletedEmbed(channelID string, messages []*discordgo.Message) (*discordgo.MessageEmbed, bool) {
	lines := make([]string, 0, len(messages)+1)
	lines = append(lines, "in <#"+channelID+">")
	for _, msg := range messages {
		lines = append(lines, deletedEmbedLine(msg))
	}
	description := strings.Join(lines, "\n\n")
	title := deletedTitle(len(messages))
	if utf8.RuneCountInString(description) > embedDescriptionLimit ||
		utf8.RuneCountInString(description)+utf8.RuneCountInString(title) > embedTotalLimit {
		return nil, false
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       colorDeleted,
		Timestamp:   messageTime(messages[len(messages)-1]).Format(time.RFC3339),
	}, true
}

// FormatDeleted renders the deleted messages of one channel, sorted by id.
// Small reports become an embed, everything else a plain text file.
func FormatDeleted(channelID string, messages []*discordgo.Message) *discordgo.MessageSend {
	sorted := sortMessages(messages)
	if len(sorted) < embedMaxMessages {
		if embed, ok := deletedEmbed(channelID, sorted); ok {
			metrics.DeletedMessageReports.WithLabelValues("embed").Inc()
			return &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
		}
	}

	lines := make([]string, 0, len(sorted))
	for _, msg := range sorted {
		lines = append(lines, deletedFileLine(msg))
	}
	metrics.DeletedMessageReports.WithLabelValues("file").Inc()
	return &discordgo.MessageSend{
		Content: fmt.Sprintf("**%s** in <#%s>", deletedTitle(len(sorted)), channelID),
		Files: []*discordgo.File{{
			Name:        fmt.Sprintf("deleted-messages-%s-%s.txt", channelID, sorted[0].ID),
			ContentType: "text/plain",
			Reader:      strings.NewReader(strings.Join(lines, "\n") + "\n"),
		}},
	}
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit-1]) + "…"
}
