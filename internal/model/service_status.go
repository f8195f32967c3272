package model

import "jobcard-service/internal/utils"

type ServiceStatus string

const (
	ServiceStatusCheckIn ServiceStatus = "check-in"
	ServiceStatusPrep    ServiceStatus = "prep"
	ServiceStatusService ServiceStatus = "service"
	ServiceStatusQC      ServiceStatus = "qc"
	ServiceStatusBilling ServiceStatus = "billing"
	ServiceStatusPickup  ServiceStatus = "pickup"

	// Устаревший этап, по порядку равен prep
	ServiceStatusInspect ServiceStatus = "inspect"
)

// ServiceStatusOrder фиксированная последовательность этапов заказ-наряда
var ServiceStatusOrder = []ServiceStatus{
	ServiceStatusCheckIn,
	ServiceStatusPrep,
	ServiceStatusService,
	ServiceStatusQC,
	ServiceStatusBilling,
	ServiceStatusPickup,
}

// ParseServiceStatus принимает вольное написание ("Check In", "CHECK_IN", "QC")
// и возвращает канонический статус
func ParseServiceStatus(raw string) (ServiceStatus, bool) {
	status := ServiceStatus(utils.NormalizeKey(raw))
	if status == "checkin" {
		status = ServiceStatusCheckIn
	}
	if status.Rank() < 0 {
		return "", false
	}
	return status, true
}

// Normalize сворачивает устаревшие этапы в актуальные (inspect -> prep)
func (s ServiceStatus) Normalize() ServiceStatus {
	if s == ServiceStatusInspect {
		return ServiceStatusPrep
	}
	return s
}

// Rank позиция статуса в ServiceStatusOrder, -1 для неизвестного
func (s ServiceStatus) Rank() int {
	normalized := s.Normalize()
	for i, status := range ServiceStatusOrder {
		if status == normalized {
			return i
		}
	}
	return -1
}

// Next следующий этап; у pickup и неизвестных статусов его нет
func (s ServiceStatus) Next() (ServiceStatus, bool) {
	rank := s.Rank()
	if rank < 0 || rank+1 >= len(ServiceStatusOrder) {
		return "", false
	}
	return ServiceStatusOrder[rank+1], true
}

func (s ServiceStatus) IsTerminal() bool {
	return s.Normalize() == ServiceStatusPickup
}

func (s ServiceStatus) Valid() bool {
	return s.Rank() >= 0
}
