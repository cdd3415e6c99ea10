package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	TelegramToken       string
	OwnerTelegramID     int64
	CaregiverTelegramID int64
	DatabasePath        string
	Timezone            *time.Location
	HorizonDays         int
	MorningTime         string
	WebhookURL          string
	ServerPort          string
	APIUsername         string
	APIPassword         string
	CalDAVURL           string
	CalDAVUsername      string
	CalDAVPassword      string
	CalDAVCalendar      string
}

func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	ownerID, err := strconv.ParseInt(os.Getenv("OWNER_TELEGRAM_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("OWNER_TELEGRAM_ID is required and must be a number")
	}

	var caregiverID int64
	if c := os.Getenv("CAREGIVER_TELEGRAM_ID"); c != "" {
		caregiverID, _ = strconv.ParseInt(c, 10, 64)
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/pillbot.db"
	}

	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "Europe/Moscow"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	horizonDays := 14
	if h := os.Getenv("HORIZON_DAYS"); h != "" {
		horizonDays, err = strconv.Atoi(h)
		if err != nil || horizonDays < 1 {
			return nil, fmt.Errorf("invalid HORIZON_DAYS: %s", h)
		}
	}

	morningTime := os.Getenv("MORNING_TIME")
	if morningTime == "" {
		morningTime = "08:00"
	}

	webhookURL := os.Getenv("WEBHOOK_URL")
	if webhookURL == "" {
		webhookURL = "https://pillbot.example.com"
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	return &Config{
		TelegramToken:       token,
		OwnerTelegramID:     ownerID,
		CaregiverTelegramID: caregiverID,
		DatabasePath:        dbPath,
		Timezone:            tz,
		HorizonDays:         horizonDays,
		MorningTime:         morningTime,
		WebhookURL:          webhookURL,
		ServerPort:          serverPort,
		APIUsername:         os.Getenv("API_USERNAME"),
		APIPassword:         os.Getenv("API_PASSWORD"),
		CalDAVURL:           os.Getenv("CALDAV_URL"),
		CalDAVUsername:      os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword:      os.Getenv("CALDAV_PASSWORD"),
		CalDAVCalendar:      os.Getenv("CALDAV_CALENDAR"),
	}, nil
}

func (c *Config) IsAllowedUser(telegramID int64) bool {
	return telegramID == c.OwnerTelegramID || telegramID == c.CaregiverTelegramID
}
