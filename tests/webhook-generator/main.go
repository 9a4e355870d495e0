package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

const webhookURL = "http://localhost:8080/webhooks/crm"

type Webhook struct {
	Event  string `json:"event"`
	ID     string `json:"id"`
	Fields Deal   `json:"fields"`
}

type Deal struct {
	Title       string    `json:"TITLE"`
	StageID     string    `json:"STAGE_ID"`
	ClientName  string    `json:"CLIENT_NAME"`
	ClientPhone string    `json:"CLIENT_PHONE"`
	ClientEmail string    `json:"CLIENT_EMAIL"`
	Country     string    `json:"COUNTRY"`
	City        string    `json:"CITY"`
	Address     string    `json:"ADDRESS"`
	Opportunity string    `json:"OPPORTUNITY"`
	IsCOD       bool      `json:"IS_COD"`
	CODAmount   string    `json:"COD_AMOUNT"`
	Carrier     string    `json:"UF_CRM_SHIPPING_COMPANY"`
	Products    []Product `json:"PRODUCTS"`
}

type Product struct {
	ProductID   string `json:"PRODUCT_ID"`
	ProductName string `json:"PRODUCT_NAME"`
	SKU         string `json:"SKU"`
	Quantity    int    `json:"QUANTITY"`
	Price       string `json:"PRICE"`
}

var (
	stages    = []string{"WON", "WON", "WON", "NEGOTIATION", "PREPARATION"}
	countries = []string{"Saudi Arabia", "United Arab Emirates", "Jordan", "Lebanon", "Qatar", "Kuwait", "Bahrain"}
	carriers  = []string{"smsa", "smsa-intl", ""}
	phones    = []string{"+966512345678", "+971501234567", "+962791234567", "+9613898696", "+97455667788"}
)

func randomDeal(dealID string) Webhook {
	amount := fmt.Sprintf("%d.%02d", rand.Intn(900)+100, rand.Intn(100))
	isCOD := rand.Intn(2) == 0

	codAmount := "0"
	if isCOD {
		codAmount = amount
	}

	return Webhook{
		Event: "ONCRMDEALUPDATE",
		ID:    dealID,
		Fields: Deal{
			Title:       "Deal " + dealID,
			StageID:     stages[rand.Intn(len(stages))],
			ClientName:  fmt.Sprintf("Customer %d", rand.Intn(1000)),
			ClientPhone: phones[rand.Intn(len(phones))],
			ClientEmail: fmt.Sprintf("customer%d@example.com", rand.Intn(1000)),
			Country:     countries[rand.Intn(len(countries))],
			City:        "City " + dealID,
			Address:     fmt.Sprintf("Street %d", rand.Intn(100)),
			Opportunity: amount,
			IsCOD:       isCOD,
			CODAmount:   codAmount,
			Carrier:     carriers[rand.Intn(len(carriers))],
			Products: []Product{
				{
					ProductID:   fmt.Sprintf("PRD-%d", rand.Intn(50)),
					ProductName: fmt.Sprintf("Product %d", rand.Intn(50)),
					SKU:         fmt.Sprintf("SKU-%d", rand.Intn(50)),
					Quantity:    rand.Intn(5) + 1,
					Price:       amount,
				},
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ticker := time.NewTicker(2 * time.Second)
	for {
		select {
		case <-ticker.C:
			dealID := fmt.Sprintf("%d", rand.Intn(100000))
			hook := randomDeal(dealID)
			data, _ := json.Marshal(hook)

			resp, err := http.Post(webhookURL, "application/json", bytes.NewReader(data))
			if err != nil {
				log.Println("webhook failed:", err)
				continue
			}
			resp.Body.Close()
			log.Println("webhook sent", dealID, "->", resp.Status)
		case <-ctx.Done():
			return
		}
	}
}
