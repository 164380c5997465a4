package telegram

import (
	"context"
	"encoding/json"
	"html"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Reply is what a command answers with. Image is optional.
type Reply struct {
	Text  string
	Image []byte
}

// CommandHandler answers one bot command. args is the text after the
// command name.
type CommandHandler func(ctx context.Context, args string) (Reply, error)

// Commands maps command names without the slash to their handlers.
type Commands map[string]CommandHandler

// parseCommand splits "/resumo@bot 7" into ("resumo", "7").
func parseCommand(text string) (string, string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name, args, _ := strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}

// getUpdates fetches new updates from Telegram using long polling.
//
// Long polling:
//   - Keeps connection open for up to pollTimeout seconds
//   - Returns immediately if updates are available
//
// Parameters:
//   - offset: Update ID to start from (acknowledges processed updates)
func (c *Client) getUpdates(ctx context.Context, offset int) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         pollTimeout,
		"allowed_updates": []string{"message"},
	}

	raw, err := c.doRequest(ctx, "getUpdates", payload)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// HandleUpdates long-polls for bot commands until ctx is done. Only
// messages from the configured chat are answered.
//
// Update processing loop:
//  1. Long poll for updates
//  2. Dispatch each command to its handler
//  3. Advance the offset to acknowledge processed updates
//  4. Repeat until ctx is cancelled
func (c *Client) HandleUpdates(ctx context.Context, commands Commands) {
	if c == nil {
		c.nilLog("command handler")
		return
	}

	c.logger.Info("starting telegram command handler", zap.Int("commands", len(commands)))
	offset := 0

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("telegram command handler stopped")
			return
		default:
		}

		updates, err := c.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Warn("error getting telegram updates", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(c.pollRetry):
			}
			continue
		}

		for _, update := range updates {
			if update.Message != nil {
				c.handleMessage(ctx, update.Message, commands)
			}
			offset = update.UpdateID + 1
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, msg *IncomingMessage, commands Commands) {
	if msg.Chat == nil || strconv.FormatInt(msg.Chat.ID, 10) != c.chatID {
		return
	}
	name, args, ok := parseCommand(msg.Text)
	if !ok {
		return
	}
	chatID := c.chatID

	handler, found := commands[name]
	if !found {
		names := make([]string, 0, len(commands))
		for n := range commands {
			names = append(names, "/"+n)
		}
		slices.Sort(names)
		_, _ = c.sendText(ctx, chatID, "Comando desconhecido. Disponíveis: "+html.EscapeString(strings.Join(names, ", ")), msg.MessageID)
		return
	}

	c.logger.Info("telegram command received", zap.String("command", name), zap.String("args", args))
	reply, err := handler(ctx, args)
	if err != nil {
		c.logger.Warn("telegram command failed", zap.String("command", name), zap.Error(err))
		_, _ = c.sendText(ctx, chatID, "❌ Falha: "+html.EscapeString(err.Error()), msg.MessageID)
		return
	}
	if err := c.sendReply(ctx, chatID, reply); err != nil {
		c.logger.Warn("telegram reply failed", zap.String("command", name), zap.Error(err))
	}
}
