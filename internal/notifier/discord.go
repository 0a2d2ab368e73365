package notifier

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/explore-metroplex/metroplex-api/internal/models"
)

type Notifier interface {
	NotifyReservation(user models.User, tour models.Tour, reservation models.Reservation) error
	NotifyCancellation(user models.User, tour models.Tour, reservation models.Reservation) error
}

type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscordNotifier(botToken, channelID string) (*DiscordNotifier, error) {
	if botToken == "" || channelID == "" {
		return nil, fmt.Errorf("discord bot token or channel ID not configured")
	}
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, err
	}
	return &DiscordNotifier{
		session:   session,
		channelID: channelID,
	}, nil
}

func (n *DiscordNotifier) NotifyReservation(user models.User, tour models.Tour, reservation models.Reservation) error {
	message := fmt.Sprintf("🎟️ **New Reservation**\n**User:** %s\n**Tour:** %s (%s)\n**Date:** %s\n**Tickets:** %d\n**Subtotal:** %d",
		user.Username,
		tour.Name,
		tour.City,
		reservation.ReservedAt.Format("2006-01-02"),
		reservation.Ticket,
		reservation.Subtotal,
	)
	return n.send(message)
}

func (n *DiscordNotifier) NotifyCancellation(user models.User, tour models.Tour, reservation models.Reservation) error {
	message := fmt.Sprintf("❌ **Reservation Canceled**\n**User:** %s\n**Tour:** %s (%s)\n**Date:** %s\n**Tickets released:** %d",
		user.Username,
		tour.Name,
		tour.City,
		reservation.ReservedAt.Format("2006-01-02"),
		reservation.Ticket,
	)
	return n.send(message)
}

func (n *DiscordNotifier) send(message string) error {
	if n.session == nil {
		return fmt.Errorf("discord session is nil")
	}
	_, err := n.session.ChannelMessageSend(n.channelID, message)
	if err != nil {
		log.Printf("Failed to send discord message: %v", err)
		return err
	}
	return nil
}
