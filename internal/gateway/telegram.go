package gateway

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tdermendjiev/aiwe-client/internal/agent"
)

// TelegramGateway runs instructions arriving over Telegram. Each chat
// becomes its own session, so history and the completion ledger follow
// the chat.
type TelegramGateway struct {
	Bot   *tgbotapi.BotAPI
	Brain agent.Brain
}

func NewTelegramGateway(token string, brain agent.Brain) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Gateway: authorized on Telegram account %s", bot.Self.UserName)

	return &TelegramGateway{
		Bot:   bot,
		Brain: brain,
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		log.Printf("Gateway: [%s] %s", update.Message.From.UserName, update.Message.Text)

		ctx := context.Background()
		sessionID := fmt.Sprintf("%d", update.Message.Chat.ID)
		response, err := tg.Brain.Think(ctx, sessionID, update.Message.Text)
		if err != nil {
			log.Printf("Gateway: think failed: %v", err)
			response = "I'm having trouble thinking right now..."
		}

		msg := tgbotapi.NewMessage(update.Message.Chat.ID, response)
		tg.Bot.Send(msg)
	}
	return nil
}

func (tg *TelegramGateway) Send(sessionID string, text string) error {
	id := 0
	fmt.Sscanf(sessionID, "%d", &id)
	if id == 0 {
		return fmt.Errorf("session %s is not a telegram chat", sessionID)
	}

	msg := tgbotapi.NewMessage(int64(id), text)
	msg.ParseMode = "Markdown"
	_, err := tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
