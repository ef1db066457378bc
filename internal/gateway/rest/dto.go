package rest

// Wire shapes of the school backend. Field names are the backend's.

type entryDTO struct {
	ID         string  `json:"id"`
	AlumnoID   *string `json:"alumnoId"`
	UserID     *string `json:"userId"`
	Fecha      string  `json:"fecha"`
	Estado     string  `json:"estado"`
	Nombre     string  `json:"nombre"`
	Imagen     string  `json:"imagen"`
	HoraInicio string  `json:"hora_inicio"`
	HoraFin    string  `json:"hora_fin"`
}

type batchLineDTO struct {
	UserXWorkGroupID string `json:"userXWorkGroupId"`
	Fecha            string `json:"fecha"`
	Estado           string `json:"estado"`
}

type batchDTO struct {
	Asistencias []batchLineDTO `json:"asistencias"`
}

type guardianDTO struct {
	UserID     string `json:"userId"`
	Fecha      string `json:"fecha"`
	Estado     string `json:"estado"`
	HoraInicio string `json:"hora_inicio"`
	HoraFin    string `json:"hora_fin"`
}

type memberDTO struct {
	ID               string `json:"_id"`
	Nombre           string `json:"nombre"`
	Image            string `json:"image"`
	Email            string `json:"email"`
	UserXWorkgroupID string `json:"userXWorkgroupId"`
}

type courseDTO struct {
	ID      string      `json:"_id"`
	Nombre  string      `json:"nombre"`
	Slug    string      `json:"slug"`
	Tutores []memberDTO `json:"tutores"`
	Alumnos []memberDTO `json:"alumnos"`
}
