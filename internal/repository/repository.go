package repository

import "github.com/labubou/TAConnect-sub000/internal/booking"

// The pgx repositories implement the core's repository contracts.
var (
	_ booking.SlotDefinitionRepository = (*SlotDefinitionRepository)(nil)
	_ booking.PolicyRepository         = (*PolicyRepository)(nil)
	_ booking.AllowedStudentRepository = (*AllowedStudentRepository)(nil)
	_ booking.ReservationRepository    = (*ReservationRepository)(nil)
)
