package plan

// CanonicalTiers are the tiers every deployment starts with. Prices are in XOF.
var CanonicalTiers = []NewPlan{
	{
		Name:        Starter,
		DisplayName: "Starter",
		PriceAmount: 25000,
		Currency:    "XOF",
		Interval:    Monthly,
		Limits: Limits{
			MaxStudents:  Max(100),
			MaxTeachers:  Max(10),
			MaxDocuments: Max(500),
			MaxStorage:   Max(1024),
			MaxEmails:    Max(1000),
			MaxSMS:       Max(0),
			MaxCampuses:  Max(1),
		},
		Features: Features{
			Reports:  true,
			Homework: true,
		},
	},
	{
		Name:        Professional,
		DisplayName: "Professional",
		PriceAmount: 75000,
		Currency:    "XOF",
		Interval:    Monthly,
		Limits: Limits{
			MaxStudents:  Max(500),
			MaxTeachers:  Max(50),
			MaxDocuments: Max(5000),
			MaxStorage:   Max(10240),
			MaxEmails:    Max(10000),
			MaxSMS:       Max(1000),
			MaxCampuses:  Max(1),
		},
		Features: Features{
			Messaging: true,
			Reports:   true,
			Payments:  true,
			Homework:  true,
			SMS:       true,
		},
	},
	{
		Name:        Business,
		DisplayName: "Business",
		PriceAmount: 200000,
		Currency:    "XOF",
		Interval:    Monthly,
		Limits: Limits{
			MaxStudents:  Max(2000),
			MaxTeachers:  Max(200),
			MaxDocuments: Max(50000),
			MaxStorage:   Max(102400),
			MaxEmails:    Max(50000),
			MaxSMS:       Max(10000),
			MaxCampuses:  Max(5),
		},
		Features: Features{
			Messaging:         true,
			Reports:           true,
			AdvancedAnalytics: true,
			MultipleSchools:   true,
			Payments:          true,
			Homework:          true,
			API:               true,
			SMS:               true,
		},
	},
	{
		Name:        Enterprise,
		DisplayName: "Enterprise",
		PriceAmount: 500000,
		Currency:    "XOF",
		Interval:    Monthly,
		Limits: Limits{
			MaxStudents:  Unlimited,
			MaxTeachers:  Unlimited,
			MaxDocuments: Unlimited,
			MaxStorage:   Unlimited,
			MaxEmails:    Unlimited,
			MaxSMS:       Unlimited,
			MaxCampuses:  Unlimited,
		},
		Features: Features{
			Messaging:         true,
			Reports:           true,
			AdvancedAnalytics: true,
			MultipleSchools:   true,
			Payments:          true,
			Homework:          true,
			API:               true,
			SMS:               true,
		},
	},
}
