package main

import (
	"log"
	"time"

	"github.com/fleetkeeper/fleetkeeper/internal/config"
	"github.com/fleetkeeper/fleetkeeper/internal/mail"
	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/service/reminders"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("db init: %v", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, configuration.REMINDER_DAYS)
	due, err := reminders.Build(db, cutoff)
	if err != nil {
		log.Fatalf("build reminders: %v", err)
	}
	if len(due) == 0 {
		log.Println("no upcoming services within the reminder window")
		return
	}

	sender := &mail.Sender{
		Host:     configuration.SMTP_HOST,
		Port:     configuration.SMTP_PORT,
		Username: configuration.SMTP_USER,
		Password: configuration.SMTP_PASSWORD,
		From:     configuration.SMTP_FROM,
	}
	if sender.From == "" {
		sender.From = sender.Username
	}

	for userID, items := range due {
		var user models.AdminUser
		if err := db.First(&user, userID).Error; err != nil {
			log.Printf("skip user %d: %v", userID, err)
			continue
		}
		if err := sender.Send(user.Email, reminders.Subject, reminders.Compose(items)); err != nil {
			log.Printf("send to %s: %v", user.Email, err)
			continue
		}
		log.Printf("sent reminder to %s", user.Email)
	}
}
