package models

import "testing"

func TestCabUpdate_Validate(t *testing.T) {
	valid := CabUpdate{CarType: "suv", Make: "Mahindra", Model: "XUV700", Plate: "KA 01 MX 4321", Year: 2022, PerKmRate: 18}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	err := CabUpdate{CarType: "truck", Year: 1980}.Validate()
	fields, ok := AsValidationErrors(err)
	if !ok {
		t.Fatalf("Validate() = %v, want ValidationErrors", err)
	}
	for _, f := range []string{"car_type", "plate", "year", "per_km_rate"} {
		if _, ok := fields[f]; !ok {
			t.Errorf("missing message for %s", f)
		}
	}
}
