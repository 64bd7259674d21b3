package content

const defaultHeroImage = "https://horizons-cdn.hostinger.com/117acb36-31dc-4706-a945-f23250275492/fba21a42a3efa38403e12e1c11d1b229.png"

const defaultLogoImage = "https://horizons-cdn.hostinger.com/117acb36-31dc-4706-a945-f23250275492/abded8c8564e182b7e4a4cba61d52acb.png"

const defaultBiography = `Autor bestseller del New York Times e internacional. Autor mexicano de ficción y no ficción | Defensor de la inclusión de personas con discapacidad | Líder de opinión en desarrollo personal.

Sergio Andrés Bello Guerra es un destacado autor, académico y defensor de la inclusión en México, reconocido por una voz poderosa que combina experiencia personal y solidez profesional. Originario de Oaxaca, es padre de dos hijos con discapacidad, una realidad que ha marcado profundamente su visión del mundo y ha inspirado gran parte de su obra literaria, tanto de ficción como de no ficción.

Sus escritos exploran temas como la resiliencia, el empoderamiento y el potencial humano. Con una formación académica multidisciplinaria (Licenciatura en Ingeniería de Sistemas Informáticos, Doctorado en Ciencias Políticas y Maestría en Escritura Creativa) Sergio aporta a sus libros una mezcla única de rigor intelectual, sensibilidad humana y claridad emocional.

Su experiencia en el servicio público, donde ha trabajado en iniciativas relacionadas con comunidades indígenas, transparencia gubernamental y desarrollo económico, complementa su misión como escritor: empoderar a las personas para superar la adversidad, reconocer su fortaleza interior y expandir sus capacidades más allá de los límites autoimpuestos.

Los libros, artículos y ensayos de Sergio no solo inspiran: funcionan como una guía práctica para quienes buscan crecimiento personal, inclusión social y un propósito renovado. Tanto si lees sus reflexiones profundas sobre desarrollo humano como sus historias de ficción con sensibilidad social, su voz transmite autenticidad, esperanza y compromiso real con la transformación.`

// Defaults returns the first-run document. Every call returns a fresh value.
func Defaults() Document {
	doc := Document{
		SchemaVersion: SchemaVersion,
		Hero: HeroSection{
			Title:                  "",
			Description:            `"Autor de ficción y no ficción transformadora: Escribiendo para el cambio, empoderando mentes, inspirando resiliencia y crecimiento"`,
			BackgroundImageDesktop: defaultHeroImage,
			BackgroundImageMobile:  defaultHeroImage,
			LogoImage:              defaultLogoImage,
			ButtonText:             "Hablemos",
		},
		About: AboutSection{
			Title:     "Sobre mí",
			Biography: defaultBiography,
		},
		Books:    BooksSection{Title: "Mis Libros"},
		Gallery:  GallerySection{Title: "Galería"},
		Services: ServicesSection{Title: "Servicios", ButtonText: "Hablemos"},
		Blog:     BlogSection{Title: "Blog", ButtonText: "Hablemos"},
	}
	normalizeLists(&doc)
	return doc
}
