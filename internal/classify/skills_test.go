package classify

import (
	"fmt"
	"strings"
	"testing"
)

func TestExtractSkills_LiteralsDeduplicated(t *testing.T) {
	skills := ExtractSkills("Senior Java Engineer", "Java, JAVA and Spring Boot on AWS with Kubernetes (k8s). JavaScript a plus.")

	want := []string{"Java", "JavaScript", "Spring Boot", "AWS", "Kubernetes", "k8s"}
	for _, w := range want {
		if !contains(skills, w) {
			t.Fatalf("expected %q in %v", w, skills)
		}
	}
	count := 0
	for _, s := range skills {
		if strings.EqualFold(s, "java") {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected java once, got %d in %v", count, skills)
	}
}

func TestExtractSkills_Capped(t *testing.T) {
	var b strings.Builder
	for _, s := range []string{"java", "python", "golang", "rust", "c++", "c#", ".net", "ruby", "php", "scala",
		"kotlin", "swift", "react", "angular", "vue", "node", "spring", "django", "sql", "postgres",
		"mysql", "oracle", "mongodb", "redis", "kafka", "spark", "hadoop", "snowflake", "databricks", "aws",
		"azure", "gcp", "docker", "terraform"} {
		fmt.Fprintf(&b, "%s, ", s)
	}
	skills := ExtractSkills("", b.String())
	if len(skills) != maxSkills {
		t.Fatalf("expected %d skills, got %d", maxSkills, len(skills))
	}
}

func TestExtractSkills_Empty(t *testing.T) {
	skills := ExtractSkills("", "")
	if skills == nil || len(skills) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", skills)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
