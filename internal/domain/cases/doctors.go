package cases

// referringDoctors is the fixed referral roster. Patients pick a doctor by
// ID during intake; the resolved entry goes into the case snapshot.
var referringDoctors = []ReferringDoctor{
	{ID: "rd-001", Name: "Dr. Elena Vasquez", Specialty: "Internal Medicine", Clinic: "Riverside Medical Group", Email: "e.vasquez@riversidemed.example"},
	{ID: "rd-002", Name: "Dr. Samuel Okafor", Specialty: "Family Medicine", Clinic: "Northgate Family Practice", Email: "s.okafor@northgatefp.example"},
	{ID: "rd-003", Name: "Dr. Priya Raman", Specialty: "Cardiology", Clinic: "Heart and Vascular Center", Email: "p.raman@hvcenter.example"},
	{ID: "rd-004", Name: "Dr. Marcus Lindqvist", Specialty: "Dermatology", Clinic: "Clear Skin Clinic", Email: "m.lindqvist@clearskin.example"},
	{ID: "rd-005", Name: "Dr. Aisha Demir", Specialty: "Pulmonology", Clinic: "Respiratory Care Associates", Email: "a.demir@respcare.example"},
}

// ReferringDoctors returns the full roster.
func ReferringDoctors() []ReferringDoctor {
	out := make([]ReferringDoctor, len(referringDoctors))
	copy(out, referringDoctors)
	return out
}

// DoctorByID looks up a roster entry; ok is false for unknown IDs.
func DoctorByID(id string) (ReferringDoctor, bool) {
	for _, d := range referringDoctors {
		if d.ID == id {
			return d, true
		}
	}
	return ReferringDoctor{}, false
}
