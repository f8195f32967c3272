package sop

import "jobcard-service/internal/model"

// DefaultTemplates каталог СОП по типам услуг детейлинга. Идентификаторы шагов
// стабильны: на них ссылаются чек-листы и записи аудита.
func DefaultTemplates() []model.SOPTemplate {
	return []model.SOPTemplate{
		{
			ID:                       "exterior-wash",
			ServiceName:              "Exterior Wash",
			EstimatedDurationMinutes: 45,
			Steps: []model.SOPStep{
				{
					ID:             "walkaround",
					Name:           "Walk-around inspection",
					Category:       model.StepCategoryInspection,
					Required:       true,
					PhotoRequired:  true,
					RequiredPhotos: 4,
					PhotoType:      model.PhotoTypeBefore,
					Checkpoints:    []string{"Front", "Rear", "Left side", "Right side"},
				},
				{
					ID:       "pre-rinse",
					Name:     "Pre-rinse and snow foam",
					Category: "wash",
					Required: true,
				},
				{
					ID:          "contact-wash",
					Name:        "Two-bucket contact wash",
					Category:    "wash",
					Required:    true,
					Checkpoints: []string{"Wheels and tyres", "Lower panels", "Upper panels", "Glass"},
				},
				{
					ID:       "dry",
					Name:     "Dry and blow out trims",
					Category: "wash",
					Required: true,
				},
				{
					ID:       "tyre-dressing",
					Name:     "Tyre dressing",
					Category: "finish",
				},
				{
					ID:             "final-photos",
					Name:           "Final photos",
					Category:       model.StepCategoryInspection,
					Required:       true,
					PhotoRequired:  true,
					RequiredPhotos: 2,
					PhotoType:      model.PhotoTypeAfter,
				},
			},
		},
		{
			ID:                       "interior-detail",
			ServiceName:              "Interior Detailing",
			EstimatedDurationMinutes: 150,
			Steps: []model.SOPStep{
				{
					ID:             "cabin-condition",
					Name:           "Cabin condition check",
					Category:       model.StepCategoryInspection,
					Required:       true,
					PhotoRequired:  true,
					RequiredPhotos: 3,
					PhotoType:      model.PhotoTypeBefore,
					Checkpoints:    []string{"Personal items removed", "Existing stains noted", "Upholstery damage noted"},
				},
				{
					ID:          "vacuum",
					Name:        "Full vacuum",
					Category:    "interior",
					Required:    true,
					Checkpoints: []string{"Carpets", "Seats", "Boot"},
				},
				{
					ID:             "shampoo",
					Name:           "Upholstery shampoo and extraction",
					Category:       "interior",
					Required:       true,
					PhotoRequired:  true,
					RequiredPhotos: 1,
					PhotoType:      model.PhotoTypeProcess,
				},
				{
					ID:       "plastics",
					Name:     "Dashboard and trim dressing",
					Category: "interior",
					Required: true,
				},
				{
					ID:       "odour",
					Name:     "Odour treatment",
					Category: "interior",
				},
				{
					ID:             "final-inspection",
					Name:           "Final interior inspection",
					Category:       model.StepCategoryInspection,
					Required:       true,
					PhotoRequired:  true,
					RequiredPhotos: 3,
					PhotoType:      model.PhotoTypeAfter,
				},
			},
		},
		{
			ID:                       "ceramic-coating",
			ServiceName:              "Ceramic Coating",
			EstimatedDurationMinutes: 480,
			Steps: []model.SOPStep{
				{
					ID:             "paint-inspection",
					Name:           "Paint depth and defect inspection",
					Category:       model.StepCategoryInspection,
					Required:       true,
					PhotoRequired:  true,
					RequiredPhotos: 6,
					PhotoType:      model.PhotoTypeInspection,
					Checkpoints:    []string{"Paint depth readings logged", "Swirls mapped", "Chips and scratches marked"},
				},
				{
					ID:             "existing-damage",
					Name:           "Existing damage record",
					Category:       model.StepCategoryInspection,
					PhotoRequired:  true,
					RequiredPhotos: 1,
					PhotoType:      model.PhotoTypeDamage,
				},
				{
					ID:          "decontamination",
					Name:        "Chemical and clay decontamination",
					Category:    "prep",
					Required:    true,
					Checkpoints: []string{"Iron remover", "Tar remover", "Clay bar"},
				},
				{
					ID:             "correction",
					Name:           "Single-stage machine polish",
					Category:       "correction",
					Required:       true,
					PhotoRequired:  true,
					RequiredPhotos: 2,
					PhotoType:      model.PhotoTypeProcess,
				},
				{
					ID:          "panel-wipe",
					Name:        "IPA panel wipe",
					Category:    "prep",
					Required:    true,
					Checkpoints: []string{"All painted panels", "Glass", "Wheels"},
				},
				{
					ID:       "coating",
					Name:     "Coating application",
					Category: "coating",
					Required: true,
				},
				{
					ID:             "cure-check",
					Name:           "Cure and high spot check",
					Category:       model.StepCategoryInspection,
					Required:       true,
					PhotoRequired:  true,
					RequiredPhotos: 4,
					PhotoType:      model.PhotoTypeAfter,
				},
			},
		},
	}
}
