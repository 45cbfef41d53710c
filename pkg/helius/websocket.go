package helius

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// Connection states
	StateDisconnected = "disconnected"
	StateConnecting   = "connecting"
	StateConnected    = "connected"

	// Reconnect settings
	maxReconnectAttempts = 10
	reconnectDelay       = 5 * time.Second
)

// WalletCallback fires when a watched wallet's account changes on chain.
type WalletCallback func(walletAddress string, lamports uint64)

// walletConnection holds one WebSocket subscription for a wallet.
type walletConnection struct {
	Address     string
	Conn        *websocket.Conn
	Status      string
	StopCh      chan bool
	Callback    WalletCallback
	wsEndpoint  string
	mu          sync.RWMutex
	lastBalance uint64
}

// WalletWatcher manages accountSubscribe connections for wallets and fires a
// callback when a wallet's balance changes, so an autopilot run can be
// triggered without polling.
type WalletWatcher struct {
	connections sync.Map // map[string]*walletConnection
	wsEndpoint  string
}

// NewWalletWatcher creates a watcher against the Helius WebSocket endpoint.
func NewWalletWatcher(apiKey string) *WalletWatcher {
	wsEndpoint := os.Getenv("HELIUS_WSS")
	if wsEndpoint == "" {
		wsEndpoint = fmt.Sprintf("wss://mainnet.helius-rpc.com/?api-key=%s", apiKey)
	}
	return &WalletWatcher{wsEndpoint: wsEndpoint}
}

// Watch starts watching a wallet. Watching an already-watched wallet is a
// no-op.
func (w *WalletWatcher) Watch(address string, callback WalletCallback) error {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("invalid wallet address %s: %w", address, err)
	}

	if _, exists := w.connections.Load(address); exists {
		log.WithFields(log.Fields{
			"wallet": address,
		}).Info("Connection already exists, skipping")
		return nil
	}

	conn := &walletConnection{
		Address:    address,
		Status:     StateDisconnected,
		StopCh:     make(chan bool, 1),
		Callback:   callback,
		wsEndpoint: w.wsEndpoint,
	}
	w.connections.Store(address, conn)

	go w.connectAndWatch(conn)

	log.WithFields(log.Fields{
		"wallet": address,
	}).Info("Wallet watcher created")
	return nil
}

// Unwatch stops watching a wallet.
func (w *WalletWatcher) Unwatch(address string) error {
	value, exists := w.connections.Load(address)
	if !exists {
		return fmt.Errorf("connection for wallet %s not found", address)
	}

	conn := value.(*walletConnection)
	close(conn.StopCh)
	w.connections.Delete(address)
	log.WithFields(log.Fields{
		"wallet": address,
	}).Info("Wallet watcher stopped")
	return nil
}

// accountNotification mirrors the accountNotification payload, trimmed to
// the lamports field.
type accountNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Value struct {
				Lamports uint64 `json:"lamports"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

func (w *WalletWatcher) connectAndWatch(conn *walletConnection) {
	reconnectAttempts := 0

	for {
		select {
		case <-conn.StopCh:
			log.WithFields(log.Fields{
				"wallet": conn.Address,
			}).Info("Stopping wallet watcher")
			if conn.Conn != nil {
				conn.Conn.Close()
			}
			return
		default:
			conn.mu.Lock()
			conn.Status = StateConnecting
			conn.mu.Unlock()

			c, _, err := websocket.DefaultDialer.Dial(conn.wsEndpoint, nil)
			if err != nil {
				log.WithFields(log.Fields{
					"wallet": conn.Address,
					"error":  err.Error(),
				}).Error("Failed to connect to Solana WebSocket")
				reconnectAttempts++
				if reconnectAttempts >= maxReconnectAttempts {
					log.WithFields(log.Fields{
						"wallet":             conn.Address,
						"reconnect_attempts": reconnectAttempts,
					}).Error("Max reconnect attempts reached, stopping")
					w.Unwatch(conn.Address)
					return
				}
				time.Sleep(reconnectDelay)
				continue
			}

			conn.mu.Lock()
			conn.Conn = c
			conn.Status = StateConnected
			conn.mu.Unlock()
			reconnectAttempts = 0
			log.WithFields(log.Fields{
				"wallet": conn.Address,
			}).Info("Connected to Solana WebSocket")

			subscribeMsg := map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      1,
				"method":  "accountSubscribe",
				"params": []interface{}{
					conn.Address,
					map[string]interface{}{
						"commitment": "confirmed",
						"encoding":   "jsonParsed",
					},
				},
			}
			if err := c.WriteJSON(subscribeMsg); err != nil {
				log.WithFields(log.Fields{
					"wallet": conn.Address,
					"error":  err.Error(),
				}).Error("Failed to send subscription message")
				c.Close()
				time.Sleep(reconnectDelay)
				continue
			}

			if !w.readLoop(conn, c) {
				return
			}
			time.Sleep(reconnectDelay)
		}
	}
}

// readLoop consumes notifications until the connection drops (returns true,
// reconnect) or the watcher is stopped (returns false).
func (w *WalletWatcher) readLoop(conn *walletConnection, c *websocket.Conn) bool {
	for {
		select {
		case <-conn.StopCh:
			c.Close()
			return false
		default:
			_, message, err := c.ReadMessage()
			if err != nil {
				log.WithFields(log.Fields{
					"wallet": conn.Address,
					"error":  err.Error(),
				}).Warn("WebSocket read failed, reconnecting")
				c.Close()
				conn.mu.Lock()
				conn.Status = StateDisconnected
				conn.mu.Unlock()
				return true
			}

			var notification accountNotification
			if err := json.Unmarshal(message, &notification); err != nil {
				continue
			}
			if notification.Method != "accountNotification" {
				continue
			}

			lamports := notification.Params.Result.Value.Lamports
			conn.mu.Lock()
			changed := lamports != conn.lastBalance
			conn.lastBalance = lamports
			conn.mu.Unlock()

			if changed && conn.Callback != nil {
				log.WithFields(log.Fields{
					"wallet":   conn.Address,
					"lamports": lamports,
				}).Info("Wallet balance changed")
				conn.Callback(conn.Address, lamports)
			}
		}
	}
}
