// Command vault-seed manages the Binance API credentials rebalance-cli reads
// from Vault at startup (internal/exchange/factory.go). Grounded on the
// teacher's cmd/vault-cli/main.go, narrowed from its multi-exchange menu down
// to the single KV v2 path this repository's exchange factory consumes.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/mExOms/rebalancer/pkg/vault"
	"golang.org/x/term"
)

func main() {
	action := flag.String("action", "", "store, view, or delete")
	path := flag.String("path", "secret/data/exchanges/binance", "Vault KV v2 data path")
	flag.Parse()

	client, err := vault.NewClient(vault.Config{}, nil)
	if err != nil {
		log.Fatalf("failed to connect to vault: %v", err)
	}

	if err := client.EnableKV2(); err != nil {
		log.Printf("warning: %v", err)
	}

	switch *action {
	case "store":
		storeKeys(client, *path)
	case "view":
		viewKeys(client, *path)
	case "delete":
		deleteKeys(client, *path)
	default:
		fmt.Println("usage: vault-seed -action=store|view|delete -path=secret/data/exchanges/binance")
		os.Exit(1)
	}
}

func storeKeys(client *vault.Client, path string) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("API Key: ")
	apiKey, _ := reader.ReadString('\n')
	apiKey = strings.TrimSpace(apiKey)

	fmt.Print("API Secret: ")
	secret, err := readPassword()
	if err != nil {
		log.Fatalf("read secret: %v", err)
	}

	if err := client.StoreExchangeKeys(path, vault.Credentials{APIKey: apiKey, APISecret: string(secret)}); err != nil {
		log.Fatalf("store keys: %v", err)
	}
	fmt.Println("stored exchange keys")
}

func viewKeys(client *vault.Client, path string) {
	creds, err := client.GetExchangeKeys(path)
	if err != nil {
		log.Fatalf("get keys: %v", err)
	}
	masked := creds.APIKey
	if len(masked) > 8 {
		masked = masked[:8] + "..."
	}
	fmt.Printf("API Key: %s\nAPI Secret: ***\n", masked)
}

func deleteKeys(client *vault.Client, path string) {
	if err := client.DeleteExchangeKeys(path); err != nil {
		log.Fatalf("delete keys: %v", err)
	}
	fmt.Println("deleted exchange keys")
}

func readPassword() ([]byte, error) {
	fd := int(syscall.Stdin)
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	defer term.Restore(fd, oldState)

	password, err := term.ReadPassword(fd)
	fmt.Println()
	return password, err
}
