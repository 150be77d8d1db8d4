package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

var (
	targetURL = flag.String("url", "http://localhost:8070/alerts", "alert webhook URL")
	apiKey    = flag.String("api-key", "", "webhook API key (required)")
	count     = flag.Int("count", 100, "number of alerts to generate")
	interval  = flag.Duration("interval", 100*time.Millisecond, "interval between alerts")
	ipPool    = flag.Int("ip-pool", 10, "number of distinct source IPs to rotate through")
	repeat    = flag.Float64("repeat-ratio", 0.3, "fraction of alerts that retransmit the previous alert for an IP")
)

type alert struct {
	SrcIP           string   `json:"srcip"`
	AgentName       string   `json:"agent_name"`
	RuleID          int      `json:"rule_id"`
	RuleDescription string   `json:"rule_description"`
	RuleLevel       int      `json:"rule_level"`
	RuleGroups      []string `json:"rule_groups"`
	Timestamp       string   `json:"timestamp"`
	FullLog         string   `json:"full_log"`
}

type ruleTemplate struct {
	id          int
	description string
	level       int
	groups      []string
	logLine     func(ip string) string
}

var rules = []ruleTemplate{
	{5712, "sshd: Attempt to login using a non-existent user", 5, []string{"syslog", "sshd", "authentication_failed"}, func(ip string) string {
		return fmt.Sprintf("sshd[%d]: Invalid user %s from %s port %d", rand.Intn(30000)+1000, gofakeit.Username(), ip, rand.Intn(60000)+1024)
	}},
	{5710, "sshd: Attempt to login using a denied user", 5, []string{"syslog", "sshd", "invalid_login"}, func(ip string) string {
		return fmt.Sprintf("sshd[%d]: Failed password for root from %s port %d ssh2", rand.Intn(30000)+1000, ip, rand.Intn(60000)+1024)
	}},
	{5763, "sshd: brute force trying to get access to the system", 10, []string{"syslog", "sshd", "authentication_failures"}, func(ip string) string {
		return fmt.Sprintf("sshd[%d]: Failed password for invalid user %s from %s", rand.Intn(30000)+1000, gofakeit.Username(), ip)
	}},
	{31103, "SQL injection attempt detected", 7, []string{"web", "attack", "sql_injection"}, func(ip string) string {
		return fmt.Sprintf("%s - - [%s] \"GET /search?q=%%27%%20OR%%201=1-- HTTP/1.1\" 403 211", ip, time.Now().Format("02/Jan/2006:15:04:05 -0700"))
	}},
	{31151, "Multiple web server 400 error codes from same source ip", 10, []string{"web", "web_scan", "recon"}, func(ip string) string {
		return fmt.Sprintf("%s - - [%s] \"GET /%s HTTP/1.1\" 404 162", ip, time.Now().Format("02/Jan/2006:15:04:05 -0700"), gofakeit.Word())
	}},
}

func main() {
	flag.Parse()

	if *apiKey == "" {
		log.Fatal("API key is required. Use -api-key flag")
	}

	gofakeit.Seed(time.Now().UnixNano())

	log.Printf("Starting alert seeder:")
	log.Printf("  Target URL: %s", *targetURL)
	log.Printf("  Alert count: %d", *count)
	log.Printf("  Interval: %v", *interval)
	log.Printf("  IP pool: %d", *ipPool)
	log.Printf("  Repeat ratio: %.2f", *repeat)

	ips := make([]string, *ipPool)
	for i := range ips {
		ips[i] = gofakeit.IPv4Address()
	}

	client := &http.Client{Timeout: 10 * time.Second}

	lastByIP := make(map[string]*alert)
	successCount := 0
	failCount := 0

	for i := 0; i < *count; i++ {
		ip := ips[rand.Intn(len(ips))]

		var a *alert
		if prev, ok := lastByIP[ip]; ok && rand.Float64() < *repeat {
			// Retransmit the detector's previous alert verbatim
			dup := *prev
			a = &dup
		} else {
			a = generateAlert(ip)
			lastByIP[ip] = a
		}

		if err := send(client, a); err != nil {
			log.Printf("Failed to send alert: %v", err)
			failCount++
		} else {
			successCount++
			if successCount%50 == 0 {
				log.Printf("Progress: %d/%d alerts sent", successCount, *count)
			}
		}

		if *interval > 0 && i < *count-1 {
			time.Sleep(*interval)
		}
	}

	log.Printf("\nSeeding complete:")
	log.Printf("  Success: %d alerts", successCount)
	log.Printf("  Failed: %d alerts", failCount)
}

func generateAlert(ip string) *alert {
	r := rules[rand.Intn(len(rules))]
	return &alert{
		SrcIP:           ip,
		AgentName:       fmt.Sprintf("%s-%02d", gofakeit.AppName(), rand.Intn(20)),
		RuleID:          r.id,
		RuleDescription: r.description,
		RuleLevel:       r.level,
		RuleGroups:      r.groups,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		FullLog:         r.logLine(ip),
	}
}

func send(client *http.Client, a *alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, *targetURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", *apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return nil
}
