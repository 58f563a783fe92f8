package store

import (
	"fmt"
	"time"
)

// TrackAffiliateClick records a click on a creator's referral link.
func (s *Store) TrackAffiliateClick(id, creatorID, refCode, visitorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO affiliate_clicks (id, creator_id, ref_code, visitor_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, creatorID, refCode, visitorID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to track affiliate click: %w", err)
	}
	return nil
}

// MarkAffiliateConversion marks the most recent unconverted click for a ref
// code as converted. Returns false when there is nothing to convert.
func (s *Store) MarkAffiliateConversion(refCode, visitorID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE affiliate_clicks SET converted_at = ?
		 WHERE id = (
			SELECT id FROM affiliate_clicks
			WHERE ref_code = ? AND visitor_id = ? AND converted_at IS NULL
			ORDER BY created_at DESC LIMIT 1
		 )`,
		time.Now().UnixMilli(), refCode, visitorID)
	if err != nil {
		return false, fmt.Errorf("failed to mark affiliate conversion: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AffiliateStats returns click and conversion counts for a creator.
func (s *Store) AffiliateStats(creatorID string) (clicks, conversions int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN converted_at IS NOT NULL THEN 1 ELSE 0 END), 0)
		 FROM affiliate_clicks WHERE creator_id = ?`, creatorID).Scan(&clicks, &conversions)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get affiliate stats: %w", err)
	}
	return clicks, conversions, nil
}
