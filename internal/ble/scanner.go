// Package ble scans Bluetooth LE advertisements for Open Drone ID service
// data and feeds the raw message payloads into the drone store.
package ble

import (
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/avbrook/skyrelay/internal/drone"
	"github.com/avbrook/skyrelay/pkg/logger"
)

// serviceUUID is the 16-bit GATT service data UUID assigned to Open Drone ID
// broadcasts (0xFFFA).
var serviceUUID = bluetooth.New16BitUUID(0xFFFA)

// odidAppCode is the ASTM application code in the 2-byte ODID-over-BLE
// service data header.
const odidAppCode = 0x0D

// Payloads longer than this carry a Message Pack over BLE 5 Long Range; a
// legacy advertisement fits a single 25-byte message.
const legacyMaxLen = 50

// Sink receives decoded-payload callbacks and adapter health updates. The
// drone service satisfies this interface.
type Sink interface {
	IngestBroadcast(transportKey string, payload []byte, source string, rssi *int) int
	SetBLEStatus(scanning, available bool)
}

// Scanner runs a continuous BLE scan with duplicates allowed: Remote ID
// transmitters rebroadcast the same frames continuously, so every
// advertisement matters.
type Scanner struct {
	adapter *bluetooth.Adapter
	sink    Sink
	logger  *logger.Logger

	mu       sync.Mutex
	scanning bool
	stopOnce sync.Once
}

// NewScanner creates a scanner feeding the given sink.
func NewScanner(sink Sink, log *logger.Logger) *Scanner {
	return &Scanner{
		adapter: bluetooth.DefaultAdapter,
		sink:    sink,
		logger:  log.Named("ble"),
	}
}

// Start enables the adapter and begins scanning in a background goroutine.
// A BLE stack failure is fatal to this adapter only: the sink is told
// bleAvailable=false and everything else keeps running.
func (s *Scanner) Start() error {
	if err := s.adapter.Enable(); err != nil {
		s.logger.Error("BLE adapter unavailable, scan disabled", logger.Error(err))
		s.sink.SetBLEStatus(false, false)
		return err
	}

	s.mu.Lock()
	s.scanning = true
	s.mu.Unlock()
	s.sink.SetBLEStatus(true, true)
	s.logger.Info("Starting BLE scan for Remote ID broadcasts")

	go func() {
		// Scan blocks until StopScan.
		err := s.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			s.handleAdvertisement(result)
		})
		if err != nil {
			s.logger.Error("BLE scan terminated", logger.Error(err))
		}
		s.mu.Lock()
		s.scanning = false
		s.mu.Unlock()
		s.sink.SetBLEStatus(false, true)
	}()

	return nil
}

// Stop ends the scan. Idempotent; safe to call whether or not the scan ever
// started.
func (s *Scanner) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		wasScanning := s.scanning
		s.mu.Unlock()
		if wasScanning {
			if err := s.adapter.StopScan(); err != nil {
				s.logger.Warn("Failed to stop BLE scan", logger.Error(err))
			}
		}
	})
}

func (s *Scanner) handleAdvertisement(result bluetooth.ScanResult) {
	for _, sd := range result.ServiceData() {
		if sd.UUID != serviceUUID {
			continue
		}

		payload := sd.Data
		// Strip the 2-byte ODID-over-BLE header (app code + counter) when
		// present. A bare legacy message is exactly 25 bytes, so anything
		// with the header is at least 27.
		if len(payload) >= 27 && payload[0] == odidAppCode {
			payload = payload[2:]
		}

		source := SourceFor(payload)
		rssi := int(result.RSSI)
		s.sink.IngestBroadcast(result.Address.String(), payload, source, &rssi)
	}
}

// SourceFor classifies a BLE payload by length: anything beyond a single
// legacy message implies a Message Pack on the long-range PHY.
func SourceFor(payload []byte) string {
	if len(payload) > legacyMaxLen {
		return drone.SourceBluetoothLongRange
	}
	return drone.SourceBluetoothLegacy
}
