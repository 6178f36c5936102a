package core

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateLines(t *testing.T) {
	tests := []struct {
		name  string
		lines []LineInput
		want  error
	}{
		{
			name: "balanced",
			lines: []LineInput{
				{AccountID: 1, Debit: 10000},
				{AccountID: 2, Credit: 10000},
			},
		},
		{
			name:  "single line",
			lines: []LineInput{{AccountID: 1, Debit: 10000}},
			want:  ErrInvalidLine,
		},
		{
			name: "both sides on one line",
			lines: []LineInput{
				{AccountID: 1, Debit: 100, Credit: 100},
				{AccountID: 2, Credit: 0, Debit: 0},
			},
			want: ErrInvalidLine,
		},
		{
			name: "zero line",
			lines: []LineInput{
				{AccountID: 1, Debit: 100},
				{AccountID: 2, Credit: 100},
				{AccountID: 3},
			},
			want: ErrInvalidLine,
		},
		{
			name: "negative amount",
			lines: []LineInput{
				{AccountID: 1, Debit: -100},
				{AccountID: 2, Credit: -100},
			},
			want: ErrInvalidLine,
		},
		{
			name: "missing account",
			lines: []LineInput{
				{Debit: 100},
				{AccountID: 2, Credit: 100},
			},
			want: ErrInvalidLine,
		},
		{
			name: "off by one cent",
			lines: []LineInput{
				{AccountID: 1, Debit: 10000},
				{AccountID: 2, Credit: 9999},
			},
			want: ErrUnbalancedEntry,
		},
		{
			name: "debit total wraps to match credit",
			lines: []LineInput{
				{AccountID: 1, Debit: 9e18},
				{AccountID: 2, Debit: 9e18},
				{AccountID: 3, Debit: 9e18},
				{AccountID: 4, Credit: 8553255926290448384},
			},
			want: ErrInvalidLine,
		},
		{
			name: "credit total overflows",
			lines: []LineInput{
				{AccountID: 1, Debit: 100},
				{AccountID: 2, Credit: math.MaxInt64/2 + 1},
				{AccountID: 3, Credit: math.MaxInt64/2 + 1},
			},
			want: ErrInvalidLine,
		},
		{
			name: "largest balanced entry",
			lines: []LineInput{
				{AccountID: 1, Debit: math.MaxInt64},
				{AccountID: 2, Credit: math.MaxInt64 - 1},
				{AccountID: 3, Credit: 1},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateLines(tt.lines)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateEntryHeader(t *testing.T) {
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, validateEntryHeader(EntryInput{Date: date, Reference: "1001", Source: SourceManual}))
	assert.ErrorIs(t, validateEntryHeader(EntryInput{Reference: "1001", Source: SourceManual}), ErrInvalidDocument)
	assert.ErrorIs(t, validateEntryHeader(EntryInput{Date: date, Reference: "VOID-1001", Source: SourceManual}), ErrInvalidDocument)
	assert.NoError(t, validateEntryHeader(EntryInput{Date: date, Reference: "VOID-1001", Source: SourceReversal}))
	assert.ErrorIs(t, validateEntryHeader(EntryInput{Date: date, Reference: "1001", Source: SourceReversal}), ErrInvalidDocument)
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), dateOnly(in))
}
