package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mExOms/rebalancer/internal/rebalance/model"
)

func TestFileStorage(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "storage_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	fs, err := NewFileStorage(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	defer fs.Close()

	stats := model.Statistics{
		MidMarketPrice:   30000.00,
		AverageExecPrice: 30001.50,
		Volume:           0.001,
		Pair:             "BTC_USDT",
		FeeInBase:        0.03,
		Action:           "sell",
	}

	if err := fs.LogStatistics(stats); err != nil {
		t.Errorf("Failed to log statistics: %v", err)
	}

	fs.flushBuffer(fs.getStatisticsLogPath(stats.Pair))

	statsPath := filepath.Join(tempDir, "logs", time.Now().Format("2006/01/02"), "statistics_BTC_USDT.jsonl")
	if _, err := os.Stat(statsPath); os.IsNotExist(err) {
		t.Error("Statistics log file not created")
	}

	state := map[string]interface{}{
		"portfolio_value": "19000.00",
		"timestamp":       time.Now().Unix(),
	}
	if err := fs.SaveSnapshot(state); err != nil {
		t.Errorf("Failed to save snapshot: %v", err)
	}

	report := map[string]interface{}{
		"date":      time.Now().Format("2006-01-02"),
		"transfers": 3,
		"fees":      "1.23",
	}
	if err := fs.SaveReport("daily_rebalance", report); err != nil {
		t.Errorf("Failed to save report: %v", err)
	}
}

func TestLogReader(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "reader_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	fs, err := NewFileStorage(tempDir)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		stats := model.Statistics{
			MidMarketPrice:   30000.00,
			AverageExecPrice: 30001.00,
			Volume:           0.001,
			Pair:             "BTC_USDT",
			FeeInBase:        float64(i) * 0.01,
			Action:           fmt.Sprintf("sell-%d", i),
		}
		fs.LogStatistics(stats)
	}

	fs.flushBuffer(fs.getStatisticsLogPath("BTC_USDT"))
	fs.Close()

	reader := NewLogReader(tempDir)

	entries, err := reader.ReadStatisticsLogs(time.Now(), "BTC_USDT")
	if err != nil {
		t.Errorf("Failed to read statistics logs: %v", err)
	}
	if len(entries) != 10 {
		t.Errorf("Expected 10 statistics entries, got %d", len(entries))
	}

	endDate := time.Now()
	startDate := endDate.AddDate(0, 0, -1)
	allEntries, err := reader.ReadDateRange(startDate, endDate, "statistics", "BTC_USDT")
	if err != nil {
		t.Errorf("Failed to read date range: %v", err)
	}
	if len(allEntries) != 10 {
		t.Errorf("Expected 10 statistics entries in date range, got %d", len(allEntries))
	}

	dates, err := reader.GetAvailableDates("statistics")
	if err != nil {
		t.Errorf("Failed to get available dates: %v", err)
	}
	if len(dates) != 1 {
		t.Errorf("Expected 1 available date, got %d", len(dates))
	}

	symbols, err := reader.GetSymbols(time.Now(), "statistics")
	if err != nil {
		t.Errorf("Failed to get symbols: %v", err)
	}
	if len(symbols) != 1 || symbols[0] != "BTC_USDT" {
		t.Errorf("Expected [BTC_USDT], got %v", symbols)
	}
}

func TestLogRotator(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "rotator_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	oldLogDir := filepath.Join(tempDir, "logs", "2023/01/01")
	os.MkdirAll(oldLogDir, 0755)
	oldLogPath := filepath.Join(oldLogDir, "statistics_BTC_USDT.jsonl")
	os.WriteFile(oldLogPath, []byte("{}\n"), 0644)

	oldTime := time.Now().Add(-10 * 24 * time.Hour)
	os.Chtimes(oldLogPath, oldTime, oldTime)

	rotator := NewLogRotator(tempDir, 7, 1)

	if err := rotator.RotateLogs(); err != nil {
		t.Errorf("Failed to rotate logs: %v", err)
	}

	if _, err := os.Stat(oldLogPath); !os.IsNotExist(err) {
		t.Error("Old log file should have been deleted")
	}

	recentLogDir := filepath.Join(tempDir, "logs", time.Now().Add(-2*24*time.Hour).Format("2006/01/02"))
	os.MkdirAll(recentLogDir, 0755)
	recentLogPath := filepath.Join(recentLogDir, "statistics_ETH_USDT.jsonl")
	os.WriteFile(recentLogPath, []byte("{}\n"), 0644)

	recentTime := time.Now().Add(-2 * 24 * time.Hour)
	os.Chtimes(recentLogPath, recentTime, recentTime)

	if err := rotator.RotateLogs(); err != nil {
		t.Errorf("Failed to rotate logs: %v", err)
	}

	if _, err := os.Stat(recentLogPath + ".gz"); os.IsNotExist(err) {
		t.Error("Recent log file should have been compressed")
	}
	if _, err := os.Stat(recentLogPath); !os.IsNotExist(err) {
		t.Error("Original log file should have been removed after compression")
	}
}

func BenchmarkFileStorage(b *testing.B) {
	tempDir, _ := os.MkdirTemp("", "bench_test")
	defer os.RemoveAll(tempDir)

	fs, _ := NewFileStorage(tempDir)
	defer fs.Close()

	stats := model.Statistics{
		MidMarketPrice: 30000.00,
		Volume:         0.001,
		Pair:           "BTC_USDT",
		Action:         "sell",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		fs.LogStatistics(stats)
	}
}
